package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/jobtrail/internal/model"
)

// PostgresStatusEventRepo はPostgreSQLを使用したステータス遷移履歴リポジトリ。
// application_idには外部キーを張っていないため、応募削除後も履歴は残る。
type PostgresStatusEventRepo struct {
	db *sql.DB
}

// NewPostgresStatusEventRepo はPostgresStatusEventRepoを生成する。
func NewPostgresStatusEventRepo(db *sql.DB) *PostgresStatusEventRepo {
	return &PostgresStatusEventRepo{db: db}
}

// Append はステータスイベントを追記する。
func (r *PostgresStatusEventRepo) Append(ctx context.Context, event *model.StatusEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	var from any
	if event.FromStatus != nil {
		from = string(*event.FromStatus)
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO application_status_events (id, application_id, from_status, to_status, source, changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING seq`,
		event.ID, event.ApplicationID, from, string(event.ToStatus), event.Source, event.ChangedAt,
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("ステータスイベントの追記に失敗しました: %w", err)
	}
	return nil
}

// ListByApplication は応募のイベントを changed_at, seq の昇順で返す。
func (r *PostgresStatusEventRepo) ListByApplication(ctx context.Context, applicationID string) ([]*model.StatusEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seq, application_id, from_status, to_status, source, changed_at
		 FROM application_status_events
		 WHERE application_id = $1
		 ORDER BY changed_at ASC, seq ASC`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("ステータス履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var events []*model.StatusEvent
	for rows.Next() {
		ev := &model.StatusEvent{}
		var from sql.NullString
		var to string
		if err := rows.Scan(&ev.ID, &ev.Seq, &ev.ApplicationID, &from, &to, &ev.Source, &ev.ChangedAt); err != nil {
			return nil, fmt.Errorf("ステータス履歴の行の読み取りに失敗しました: %w", err)
		}
		ev.ToStatus = model.Status(to)
		if from.Valid {
			s := model.Status(from.String)
			ev.FromStatus = &s
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ステータス履歴の走査に失敗しました: %w", err)
	}
	return events, nil
}

// PostgresFollowupRepo はPostgreSQLを使用したフォローアップログリポジトリ。
type PostgresFollowupRepo struct {
	db *sql.DB
}

// NewPostgresFollowupRepo はPostgresFollowupRepoを生成する。
func NewPostgresFollowupRepo(db *sql.DB) *PostgresFollowupRepo {
	return &PostgresFollowupRepo{db: db}
}

// Append はフォローアップログを追記する。重複排除は行わない。
func (r *PostgresFollowupRepo) Append(ctx context.Context, log *model.FollowupLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO application_followups (id, application_id, channel, notes, followup_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq`,
		log.ID, log.ApplicationID, log.Channel, log.Notes, log.FollowupAt,
	).Scan(&log.Seq)
	if err != nil {
		return fmt.Errorf("フォローアップログの追記に失敗しました: %w", err)
	}
	return nil
}

// ListByApplication は応募のフォローアップログを followup_at, seq の昇順で返す。
func (r *PostgresFollowupRepo) ListByApplication(ctx context.Context, applicationID string) ([]*model.FollowupLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seq, application_id, channel, notes, followup_at
		 FROM application_followups
		 WHERE application_id = $1
		 ORDER BY followup_at ASC, seq ASC`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("フォローアップログの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var logs []*model.FollowupLog
	for rows.Next() {
		l := &model.FollowupLog{}
		if err := rows.Scan(&l.ID, &l.Seq, &l.ApplicationID, &l.Channel, &l.Notes, &l.FollowupAt); err != nil {
			return nil, fmt.Errorf("フォローアップログの行の読み取りに失敗しました: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォローアップログの走査に失敗しました: %w", err)
	}
	return logs, nil
}

// compile-time interface check
var (
	_ StatusEventRepository = (*PostgresStatusEventRepo)(nil)
	_ FollowupRepository    = (*PostgresFollowupRepo)(nil)
)
