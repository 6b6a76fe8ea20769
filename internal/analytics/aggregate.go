// Package analytics は応募一覧のスナップショットから集計値を算出する。
// 集計関数はいずれも純粋関数で、入力を変更せずI/Oも行わない。
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/jobtrail/internal/model"
)

// WeekCount は週バケット1つ分の応募数。
type WeekCount struct {
	Week  string
	Count int
}

// Summary はダッシュボード表示用の集計結果。
type Summary struct {
	Total      int
	Interviews int
	Offers     int
	ByStatus   map[model.Status]int
	ByWeek     []WeekCount
}

// CountByStatus はステータスごとの応募数を返す。
// 固定の5ステータスは件数0でも必ずキーとして含まれる。
func CountByStatus(rows []*model.Application) map[model.Status]int {
	counts := make(map[model.Status]int, len(model.AllStatuses()))
	for _, s := range model.AllStatuses() {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status]++
	}
	return counts
}

// CountByWeek はdate_appliedの週バケットごとの応募数をキーの昇順で返す。
func CountByWeek(rows []*model.Application) []WeekCount {
	counts := make(map[string]int)
	for _, row := range rows {
		counts[WeekKey(row.DateApplied)]++
	}

	weeks := make([]WeekCount, 0, len(counts))
	for week, count := range counts {
		weeks = append(weeks, WeekCount{Week: week, Count: count})
	}
	// キーはゼロ埋めされているため辞書順で時系列順になる
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Week < weeks[j].Week })
	return weeks
}

// WeekKey は暦日から "YYYY-Www" 形式の週バケットキーを返す。
//
// その年の1月1日(UTC)から7日ごとに区切った番号で、ISO 8601の週番号ではない。
// 1月1日の曜日による補正や年をまたぐ週の統合は行わないため、
// 12月30日・31日は "W53" になりうる。
func WeekKey(date time.Time) string {
	d := model.DateOf(date)
	jan1 := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	daysSinceJan1 := int(d.Sub(jan1) / (24 * time.Hour))
	week := daysSinceJan1/7 + 1
	return fmt.Sprintf("%d-W%02d", d.Year(), week)
}

// Summarize はスナップショット全体の集計を返す。
func Summarize(rows []*model.Application) Summary {
	byStatus := CountByStatus(rows)
	return Summary{
		Total:      len(rows),
		Interviews: byStatus[model.StatusInterview],
		Offers:     byStatus[model.StatusOffer],
		ByStatus:   byStatus,
		ByWeek:     CountByWeek(rows),
	}
}
