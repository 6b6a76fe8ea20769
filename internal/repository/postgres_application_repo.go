package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/jobtrail/internal/model"
)

const applicationColumns = `id, company, company_normalized, role, role_level, status, status_updated_at,
	date_applied, job_url, location, notes, next_followup, followup_status, last_followed_up_at,
	outcome_reason, rejection_stage, source_site, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresApplicationRepo はPostgreSQLを使用した応募リポジトリ。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

// Create は応募を作成する。IDが空の場合はUUIDを採番する。
func (r *PostgresApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}

	var nextFollowup any
	if app.NextFollowup != nil {
		nextFollowup = model.FormatDate(*app.NextFollowup)
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO applications (
			id, company, company_normalized, role, role_level, status, status_updated_at,
			date_applied, job_url, location, notes, next_followup, followup_status,
			outcome_reason, rejection_stage, source_site, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9, $10, $11, $12::date, $13, $14, $15, $16, now(), now())
		RETURNING created_at, updated_at`,
		app.ID, app.Company, app.CompanyNormalized, app.Role, string(app.RoleLevel), string(app.Status),
		app.StatusUpdatedAt, model.FormatDate(app.DateApplied), nullString(app.JobURL), nullString(app.Location),
		nullString(app.Notes), nextFollowup, string(app.FollowupStatus), nullString(app.OutcomeReason),
		nullString(app.RejectionStage), string(app.SourceSite),
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("応募の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの応募を取得する。見つからない場合はnilを返す。
func (r *PostgresApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`,
		id,
	)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("応募の取得に失敗しました: %w", err)
	}
	return app, nil
}

// List は応募一覧を date_applied 降順で返す。
func (r *PostgresApplicationRepo) List(ctx context.Context, status *model.Status) ([]*model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY date_applied DESC, seq DESC`

	return r.queryApplications(ctx, "応募一覧", query, args...)
}

// ListFollowupsDue はフォローアップ期日を過ぎた未対応の応募を返す。
func (r *PostgresApplicationRepo) ListFollowupsDue(ctx context.Context, due time.Time) ([]*model.Application, error) {
	return r.queryApplications(ctx, "フォローアップ対象",
		`SELECT `+applicationColumns+` FROM applications
		 WHERE next_followup IS NOT NULL AND next_followup <= $1::date AND followup_status = 'pending'
		 ORDER BY next_followup ASC, seq ASC`,
		model.FormatDate(due),
	)
}

func (r *PostgresApplicationRepo) queryApplications(ctx context.Context, what, query string, args ...any) ([]*model.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%sの取得に失敗しました: %w", what, err)
	}
	defer rows.Close()

	var apps []*model.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("%sの行の読み取りに失敗しました: %w", what, err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの走査に失敗しました: %w", what, err)
	}
	return apps, nil
}

// Update は部分更新を適用し、更新後の応募を返す。見つからない場合はnilを返す。
// statusとstatus_updated_atはここでは変更しない。
func (r *PostgresApplicationRepo) Update(ctx context.Context, id string, patch model.ApplicationPatch, companyNormalized string) (*model.Application, error) {
	var sets []string
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Company != nil {
		set("company", *patch.Company)
		set("company_normalized", companyNormalized)
	}
	if patch.Role != nil {
		set("role", *patch.Role)
	}
	if patch.RoleLevel != nil {
		set("role_level", string(*patch.RoleLevel))
	}
	if patch.DateApplied != nil {
		args = append(args, model.FormatDate(*patch.DateApplied))
		sets = append(sets, fmt.Sprintf("date_applied = $%d::date", len(args)))
	}
	if patch.JobURL != nil {
		set("job_url", emptyToNull(*patch.JobURL))
	}
	if patch.Location != nil {
		set("location", emptyToNull(*patch.Location))
	}
	if patch.Notes != nil {
		set("notes", emptyToNull(*patch.Notes))
	}
	switch {
	case patch.ClearNextFollowup:
		sets = append(sets, "next_followup = NULL")
	case patch.NextFollowup != nil:
		args = append(args, model.FormatDate(*patch.NextFollowup))
		sets = append(sets, fmt.Sprintf("next_followup = $%d::date", len(args)))
	}
	if patch.FollowupStatus != nil {
		set("followup_status", string(*patch.FollowupStatus))
	}
	if patch.OutcomeReason != nil {
		set("outcome_reason", emptyToNull(*patch.OutcomeReason))
	}
	if patch.RejectionStage != nil {
		set("rejection_stage", emptyToNull(*patch.RejectionStage))
	}
	if patch.SourceSite != nil {
		set("source_site", string(*patch.SourceSite))
	}
	sets = append(sets, "updated_at = now()")

	row := r.db.QueryRowContext(ctx,
		`UPDATE applications SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+applicationColumns,
		args...,
	)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("応募の更新に失敗しました: %w", err)
	}
	return app, nil
}

// UpdateStatus はステータスとstatus_updated_atを更新する。
func (r *PostgresApplicationRepo) UpdateStatus(ctx context.Context, id string, status model.Status, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $2, status_updated_at = $3, updated_at = now() WHERE id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return false, fmt.Errorf("ステータスの更新に失敗しました: %w", err)
	}
	return affectedOne(result, "ステータス更新")
}

// MarkFollowedUp はフォローアップ済みに更新する。
func (r *PostgresApplicationRepo) MarkFollowedUp(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE applications SET followup_status = 'done', last_followed_up_at = $2, updated_at = now() WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("フォローアップ状態の更新に失敗しました: %w", err)
	}
	return affectedOne(result, "フォローアップ状態更新")
}

// Delete は応募のみを削除する。履歴テーブルには外部キーがないため影響しない。
func (r *PostgresApplicationRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM applications WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("応募の削除に失敗しました: %w", err)
	}
	return affectedOne(result, "削除")
}

func scanApplication(s rowScanner) (*model.Application, error) {
	app := &model.Application{}
	var (
		roleLevel, status, followupStatus, sourceSite       string
		jobURL, location, notes, outcomeReason, rejectStage sql.NullString
		nextFollowup, lastFollowedUpAt                      sql.NullTime
	)
	err := s.Scan(
		&app.ID, &app.Company, &app.CompanyNormalized, &app.Role, &roleLevel, &status, &app.StatusUpdatedAt,
		&app.DateApplied, &jobURL, &location, &notes, &nextFollowup, &followupStatus, &lastFollowedUpAt,
		&outcomeReason, &rejectStage, &sourceSite, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.RoleLevel = model.RoleLevel(roleLevel)
	app.Status = model.Status(status)
	app.FollowupStatus = model.FollowupStatus(followupStatus)
	app.SourceSite = model.SourceSite(sourceSite)
	app.DateApplied = model.DateOf(app.DateApplied)
	app.JobURL = stringPtr(jobURL)
	app.Location = stringPtr(location)
	app.Notes = stringPtr(notes)
	app.OutcomeReason = stringPtr(outcomeReason)
	app.RejectionStage = stringPtr(rejectStage)
	if nextFollowup.Valid {
		d := model.DateOf(nextFollowup.Time)
		app.NextFollowup = &d
	}
	if lastFollowedUpAt.Valid {
		t := lastFollowedUpAt.Time
		app.LastFollowedUpAt = &t
	}
	return app, nil
}

func affectedOne(result sql.Result, what string) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s結果の取得に失敗しました: %w", what, err)
	}
	return rowsAffected > 0, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
