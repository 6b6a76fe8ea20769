package lifecycle

import (
	"context"
	"fmt"

	"github.com/hitoshi/jobtrail/internal/model"
)

// History は応募1件分の履歴。応募が削除済みでも取得できる。
type History struct {
	ApplicationID string
	StatusEvents  []*model.StatusEvent
	Followups     []*model.FollowupLog
	ChainIntact   bool
}

// History は応募のステータスイベント列とフォローアップログを返す。
// 応募の存在確認は行わない。
func (e *Engine) History(ctx context.Context, applicationID string) (*History, error) {
	events, err := e.statusEvents.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "select status events", Err: err}
	}
	logs, err := e.followups.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, &model.PersistenceError{Op: "select followups", Err: err}
	}
	if events == nil {
		events = []*model.StatusEvent{}
	}
	if logs == nil {
		logs = []*model.FollowupLog{}
	}
	return &History{
		ApplicationID: applicationID,
		StatusEvents:  events,
		Followups:     logs,
		ChainIntact:   VerifyChain(events) == nil,
	}, nil
}

// VerifyChain は時刻順に並んだステータスイベント列がチェーンを成しているかを検証する。
// 先頭はfrom=nullの作成イベントで、以降の各イベントのfromは直前のtoと一致する必要がある。
// 空の列は有効とみなす。同時遷移の競合や副次書き込みの失敗があると検証に失敗しうる。
func VerifyChain(events []*model.StatusEvent) error {
	for i, ev := range events {
		if i == 0 {
			if ev.FromStatus != nil {
				return fmt.Errorf("first event %s has from_status %q, want null", ev.ID, *ev.FromStatus)
			}
			continue
		}
		prev := events[i-1].ToStatus
		if ev.FromStatus == nil {
			return fmt.Errorf("event %s at position %d has null from_status", ev.ID, i)
		}
		if *ev.FromStatus != prev {
			return fmt.Errorf("event %s at position %d: from_status %q does not match previous to_status %q",
				ev.ID, i, *ev.FromStatus, prev)
		}
	}
	return nil
}
