package model

import (
	"fmt"
	"time"
)

// DateLayout は暦日（date_applied, next_followup）の入出力フォーマット。
const DateLayout = "2006-01-02"

// ParseDate は "YYYY-MM-DD" 形式の文字列をUTC 0時の時刻に変換する。
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate は暦日を "YYYY-MM-DD" 形式で返す。
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateOf は時刻をUTC基準の暦日（0時）に切り詰める。
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
