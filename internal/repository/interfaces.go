// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/jobtrail/internal/model"
)

// ApplicationRepository は応募データの永続化インターフェース。
type ApplicationRepository interface {
	// Create は応募を作成する。IDとseqはストア側で採番する。
	Create(ctx context.Context, app *model.Application) error

	// FindByID は指定IDの応募を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Application, error)

	// List は応募一覧を date_applied 降順で返す。同日の場合は後から作成したものが先。
	// statusがnilでなければそのステータスの応募のみを返す。
	List(ctx context.Context, status *model.Status) ([]*model.Application, error)

	// Update は部分更新を適用し、更新後の応募を返す。見つからない場合はnilを返す。
	// companyNormalizedはpatch.Companyが指定された場合のみ使用する。
	Update(ctx context.Context, id string, patch model.ApplicationPatch, companyNormalized string) (*model.Application, error)

	// UpdateStatus はステータスとstatus_updated_atのみを更新する。
	// 見つからない場合はfalseを返す。
	UpdateStatus(ctx context.Context, id string, status model.Status, at time.Time) (bool, error)

	// MarkFollowedUp はfollowup_statusをdoneにし、last_followed_up_atを更新する。
	// 見つからない場合はfalseを返す。
	MarkFollowedUp(ctx context.Context, id string, at time.Time) (bool, error)

	// Delete は応募のみを削除する。履歴テーブルの行は残る。
	// 見つからない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// ListFollowupsDue はnext_followupがdue以前でfollowup_statusがpendingの応募を返す。
	ListFollowupsDue(ctx context.Context, due time.Time) ([]*model.Application, error)
}

// StatusEventRepository はステータス遷移履歴の追記専用インターフェース。
type StatusEventRepository interface {
	// Append はステータスイベントを追記する。
	Append(ctx context.Context, event *model.StatusEvent) error

	// ListByApplication は応募のイベントを changed_at, seq の昇順で返す。
	// 応募が削除済みでも履歴は返る。
	ListByApplication(ctx context.Context, applicationID string) ([]*model.StatusEvent, error)
}

// FollowupRepository はフォローアップログの追記専用インターフェース。
type FollowupRepository interface {
	// Append はフォローアップログを追記する。
	Append(ctx context.Context, log *model.FollowupLog) error

	// ListByApplication は応募のフォローアップログを followup_at, seq の昇順で返す。
	ListByApplication(ctx context.Context, applicationID string) ([]*model.FollowupLog, error)
}

// AuditEventRepository は監査イベントの追記専用インターフェース。
type AuditEventRepository interface {
	// Append は監査イベントを追記する。
	Append(ctx context.Context, event *model.AuditEvent) error

	// ExistsSince は指定種別・応募のイベントがsince以降に記録済みかを返す。
	ExistsSince(ctx context.Context, eventType, applicationID string, since time.Time) (bool, error)
}

// SessionRepository はセッションデータの参照インターフェース。
// セッションの発行は外部の認証基盤が行う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// ExportRow はエクスポート対象テーブルの1行。
// Cursorはテーブルごとのカーソル列の値、Seqは同一カーソル値内の順序。
type ExportRow struct {
	Cursor time.Time
	Seq    int64
	Data   []byte // JSONエンコード済みの行
}

// ExportSource はテーブルをカーソル列で増分読み出しするインターフェース。
type ExportSource interface {
	// Tables はエクスポート対象のテーブル名を返す。
	Tables() []string

	// ReadSince はカーソル列が (cursor, seq) より後の行を昇順で最大limit件返す。
	ReadSince(ctx context.Context, table string, cursor time.Time, seq int64, limit int) ([]ExportRow, error)
}
