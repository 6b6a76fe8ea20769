// Package audit はドメインイベントの監査ログ記録を提供する。
// 監査ログは追記のみで、ビジネスロジックからは読まれない。
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
)

// 監査イベント種別
const (
	EventAppCreated        = "app_created"
	EventAppUpdated        = "app_updated"
	EventStatusChanged     = "status_changed"
	EventFollowupLogged    = "followup_logged"
	EventAppDeletedAttempt = "app_deleted_attempt"
	EventAppDeleted        = "app_deleted"
	EventFollowupDue       = "followup_due"
)

// Recorder は監査イベントを1件ずつ追記する。
type Recorder struct {
	repo   repository.AuditEventRepository
	logger *slog.Logger
}

// NewRecorder はRecorderの新しいインスタンスを生成する。
func NewRecorder(repo repository.AuditEventRepository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Record はペイロードをJSONにエンコードして監査イベントを1行追記する。
// 失敗時は警告ログを出力し、*model.AuditWriteErrorを返す。
// 呼び出し元はこのエラーで主処理を中断してはならない。
func (r *Recorder) Record(ctx context.Context, eventType string, applicationID *string, actorID string, payload any) error {
	event := &model.AuditEvent{
		EventType:     eventType,
		ApplicationID: applicationID,
	}
	if actorID != "" {
		event.ActorID = &actorID
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return r.fail(eventType, applicationID, fmt.Errorf("ペイロードのエンコードに失敗しました: %w", err))
		}
		event.Payload = data
	}

	if err := r.repo.Append(ctx, event); err != nil {
		return r.fail(eventType, applicationID, err)
	}
	return nil
}

// Exists は指定種別・応募のイベントがsince以降に記録済みかを返す。
func (r *Recorder) Exists(ctx context.Context, eventType, applicationID string, since time.Time) (bool, error) {
	return r.repo.ExistsSince(ctx, eventType, applicationID, since)
}

func (r *Recorder) fail(eventType string, applicationID *string, err error) error {
	attrs := []any{"event_type", eventType, "error", err}
	if applicationID != nil {
		attrs = append(attrs, "application_id", *applicationID)
	}
	r.logger.Warn("監査ログの記録に失敗しました", attrs...)
	return &model.AuditWriteError{EventType: eventType, Err: err}
}
