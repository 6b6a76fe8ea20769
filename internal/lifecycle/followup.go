package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/hitoshi/jobtrail/internal/audit"
	"github.com/hitoshi/jobtrail/internal/model"
)

// フォローアップ記録時のデフォルト値
const (
	DefaultFollowupChannel = "other"
	DefaultFollowupNotes   = "Followed up via dashboard"
)

// MarkFollowupDone はフォローアップの実施を記録する。
//
// フォローアップログを追記した後、応募のfollowup_statusをdoneに、
// last_followed_up_atを現在時刻に更新する。いずれかが失敗した場合はそこで中断する。
// 重複排除は行わず、呼び出しのたびにログが1行増える。
func (e *Engine) MarkFollowupDone(ctx context.Context, sess *model.Session, app *model.Application, channel, notes string) (*Result, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultFollowupChannel
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		notes = DefaultFollowupNotes
	}

	at := e.now().UTC().Truncate(time.Microsecond)
	entry := &model.FollowupLog{
		ApplicationID: app.ID,
		Channel:       channel,
		Notes:         notes,
		FollowupAt:    at,
	}
	if err := e.followups.Append(ctx, entry); err != nil {
		return nil, &model.PersistenceError{Op: "insert followup", Err: err}
	}

	if err := e.store.MarkFollowedUp(ctx, app.ID, at); err != nil {
		return nil, err
	}
	e.metrics.FollowupLogged()

	updated := *app
	updated.FollowupStatus = model.FollowupDone
	updated.LastFollowedUpAt = &at
	result := &Result{Application: &updated}

	e.recordAudit(ctx, result, sess, audit.EventFollowupLogged, app.ID, map[string]string{
		"at":      at.Format(time.RFC3339Nano),
		"channel": channel,
	})
	return result, nil
}
