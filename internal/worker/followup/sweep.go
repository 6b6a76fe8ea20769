// Package followup はフォローアップ期日を過ぎた応募を検出するジョブを提供する。
// 期日切れの応募ごとに1日1回だけfollowup_due監査イベントを記録する。
package followup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jobtrail/internal/audit"
	"github.com/hitoshi/jobtrail/internal/model"
)

// DueLister はフォローアップ対象の応募を取得するインターフェース。
// repository.ApplicationRepositoryの部分集合として定義する。
type DueLister interface {
	ListFollowupsDue(ctx context.Context, due time.Time) ([]*model.Application, error)
}

// AuditRecorder は監査イベントの記録と重複確認を行うインターフェース。
type AuditRecorder interface {
	Record(ctx context.Context, eventType string, applicationID *string, actorID string, payload any) error
	Exists(ctx context.Context, eventType, applicationID string, since time.Time) (bool, error)
}

// MetricsRecorder は検出件数を記録するインターフェース。
type MetricsRecorder interface {
	FollowupDue()
}

// SweepJob はフォローアップ期日切れの応募を検出する日次ジョブ。
// 同じ日に何度実行しても応募ごとのイベントは1件のみ。
type SweepJob struct {
	apps    DueLister
	audit   AuditRecorder
	metrics MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewSweepJob は新しいSweepJobを生成する。
func NewSweepJob(apps DueLister, recorder AuditRecorder, metrics MetricsRecorder, logger *slog.Logger) *SweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepJob{
		apps:    apps,
		audit:   recorder,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Result は1回の実行結果。
type Result struct {
	Due      int // 期日切れの応募数
	Recorded int // 今回新たに記録したイベント数
	Skipped  int // 本日記録済みのため省略した数
	Failed   int
}

// Run は本日までに期日を迎えた未対応の応募を検出し、followup_dueイベントを記録する。
// 個々の応募の記録失敗はログに残して処理を継続する。
func (j *SweepJob) Run(ctx context.Context) (Result, error) {
	start := j.now()
	today := model.DateOf(start)

	apps, err := j.apps.ListFollowupsDue(ctx, today)
	if err != nil {
		j.logger.Error("フォローアップ対象の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return Result{}, fmt.Errorf("フォローアップ対象の取得に失敗: %w", err)
	}

	res := Result{Due: len(apps)}
	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		exists, err := j.audit.Exists(ctx, audit.EventFollowupDue, app.ID, today)
		if err != nil {
			res.Failed++
			j.logger.Warn("followup_dueの確認に失敗しました",
				slog.String("application_id", app.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if exists {
			res.Skipped++
			continue
		}

		appID := app.ID
		payload := map[string]string{
			"next_followup": model.FormatDate(*app.NextFollowup),
			"company":       app.Company,
			"role":          app.Role,
		}
		if err := j.audit.Record(ctx, audit.EventFollowupDue, &appID, "", payload); err != nil {
			res.Failed++
			continue
		}
		res.Recorded++
		if j.metrics != nil {
			j.metrics.FollowupDue()
		}
	}

	j.logger.Info("フォローアップ検出ジョブが完了しました",
		slog.Int("due_count", res.Due),
		slog.Int("recorded_count", res.Recorded),
		slog.Int("skipped_count", res.Skipped),
		slog.Int("failed_count", res.Failed),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return res, nil
}

// Start は起動直後に1回実行し、その後interval間隔で実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SweepJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("フォローアップ検出ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	j.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("フォローアップ検出ジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *SweepJob) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("フォローアップ検出ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
