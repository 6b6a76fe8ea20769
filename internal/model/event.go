// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// DefaultEventSource はステータスイベントの発生元タグのデフォルト値。
const DefaultEventSource = "ui"

// StatusEvent はステータス遷移1回分の不変な履歴。
// FromStatusがnilになるのは作成時の合成イベントのみ。
type StatusEvent struct {
	ID            string
	Seq           int64
	ApplicationID string
	FromStatus    *Status
	ToStatus      Status
	Source        string
	ChangedAt     time.Time
}

// FollowupLog はフォローアップ実施1回分の追記専用ログ。
type FollowupLog struct {
	ID            string
	Seq           int64
	ApplicationID string
	Channel       string
	Notes         string
	FollowupAt    time.Time
}

// AuditEvent は汎用のドメインイベントログ。
// ビジネスロジックからは読まれず、追記のみ行われる。
type AuditEvent struct {
	ID            string
	Seq           int64
	EventType     string
	ApplicationID *string
	ActorID       *string
	Payload       json.RawMessage
	CreatedAt     time.Time
}
