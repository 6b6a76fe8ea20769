package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/jobtrail/internal/model"
)

// PostgresAuditEventRepo はPostgreSQLを使用した監査イベントリポジトリ。
type PostgresAuditEventRepo struct {
	db *sql.DB
}

// NewPostgresAuditEventRepo はPostgresAuditEventRepoを生成する。
func NewPostgresAuditEventRepo(db *sql.DB) *PostgresAuditEventRepo {
	return &PostgresAuditEventRepo{db: db}
}

// Append は監査イベントを追記する。CreatedAtがゼロ値の場合はDB側の現在時刻を使う。
func (r *PostgresAuditEventRepo) Append(ctx context.Context, event *model.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	var payload any
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}
	var createdAt any
	if !event.CreatedAt.IsZero() {
		createdAt = event.CreatedAt
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO application_events (id, event_type, application_id, actor_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, COALESCE($6::timestamptz, now()))
		 RETURNING seq, created_at`,
		event.ID, event.EventType, nullString(event.ApplicationID), nullString(event.ActorID), payload, createdAt,
	).Scan(&event.Seq, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("監査イベントの追記に失敗しました: %w", err)
	}
	return nil
}

// ExistsSince は指定種別・応募のイベントがsince以降に記録済みかを返す。
func (r *PostgresAuditEventRepo) ExistsSince(ctx context.Context, eventType, applicationID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM application_events
			WHERE event_type = $1 AND application_id = $2 AND created_at >= $3
		)`,
		eventType, applicationID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("監査イベントの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ AuditEventRepository = (*PostgresAuditEventRepo)(nil)
