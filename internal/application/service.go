// Package application は応募エンティティの永続化に関するドメインロジックを提供する。
// ステータス遷移の履歴やフォローアップの記録はlifecycleパッケージが担う。
package application

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
	"github.com/hitoshi/jobtrail/internal/security"
)

// Service は応募ストアのサービス層。
// 入力の検証と正規化を行い、ストア呼び出しの失敗はPersistenceErrorとして返す。
type Service struct {
	repo      repository.ApplicationRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ApplicationRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Create は応募を作成し、ストアが採番したIDを含む永続化済みの応募を返す。
// 会社名と職種は必須。未指定の列挙値はデフォルト値で補完する。
func (s *Service) Create(ctx context.Context, in model.NewApplication) (*model.Application, error) {
	company := strings.TrimSpace(in.Company)
	if company == "" {
		return nil, model.NewValidationError("company", "必須項目です")
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		return nil, model.NewValidationError("role", "必須項目です")
	}

	status := in.Status
	if status == "" {
		status = model.StatusApplied
	} else if !status.Valid() {
		return nil, model.NewInvalidStatusError(string(status))
	}
	roleLevel := in.RoleLevel
	if roleLevel == "" {
		roleLevel = model.RoleLevelOther
	} else if !roleLevel.Valid() {
		return nil, model.NewValidationError("role_level", "不明な値です: "+string(roleLevel))
	}
	sourceSite := in.SourceSite
	if sourceSite == "" {
		sourceSite = model.SourceOther
	} else if !sourceSite.Valid() {
		return nil, model.NewValidationError("source_site", "不明な値です: "+string(sourceSite))
	}
	followupStatus := in.FollowupStatus
	if followupStatus == "" {
		followupStatus = model.FollowupPending
	} else if !followupStatus.Valid() {
		return nil, model.NewValidationError("followup_status", "不明な値です: "+string(followupStatus))
	}

	jobURL, err := cleanJobURL(in.JobURL)
	if err != nil {
		return nil, err
	}
	var text [4]string
	for i, f := range []struct{ name, raw string }{
		{"location", in.Location},
		{"notes", in.Notes},
		{"outcome_reason", in.OutcomeReason},
		{"rejection_stage", in.RejectionStage},
	} {
		if text[i], err = s.cleanText(f.name, f.raw); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	app := &model.Application{
		Company:           company,
		CompanyNormalized: Normalize(company),
		Role:              role,
		RoleLevel:         roleLevel,
		Status:            status,
		StatusUpdatedAt:   now,
		DateApplied:       model.DateOf(now),
		JobURL:            optional(jobURL),
		Location:          optional(text[0]),
		Notes:             optional(text[1]),
		FollowupStatus:    followupStatus,
		OutcomeReason:     optional(text[2]),
		RejectionStage:    optional(text[3]),
		SourceSite:        sourceSite,
	}
	if in.DateApplied != nil {
		app.DateApplied = model.DateOf(*in.DateApplied)
	}
	if in.NextFollowup != nil {
		d := model.DateOf(*in.NextFollowup)
		app.NextFollowup = &d
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, &model.PersistenceError{Op: "insert application", Err: err}
	}
	return app, nil
}

// Get は指定IDの応募を返す。存在しない場合はApplicationNotFoundエラーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, &model.PersistenceError{Op: "select application", Err: err}
	}
	if app == nil {
		return nil, model.NewApplicationNotFoundError(id)
	}
	return app, nil
}

// List は応募一覧を返す。statusがnilでなければそのステータスのみに絞り込む。
// キャッシュは持たず、毎回ストアから読み直す。
func (s *Service) List(ctx context.Context, status *model.Status) ([]*model.Application, error) {
	if status != nil && !status.Valid() {
		return nil, model.NewInvalidStatusError(string(*status))
	}
	apps, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list applications", Err: err}
	}
	if apps == nil {
		apps = []*model.Application{}
	}
	return apps, nil
}

// Update は部分更新を適用し、更新後の応募を返す。
// 会社名を変更した場合はcompany_normalizedも再計算する。ステータスは変更しない。
func (s *Service) Update(ctx context.Context, id string, patch model.ApplicationPatch) (*model.Application, error) {
	var normalized string
	if patch.Company != nil {
		company := strings.TrimSpace(*patch.Company)
		if company == "" {
			return nil, model.NewValidationError("company", "空にはできません")
		}
		patch.Company = &company
		normalized = Normalize(company)
	}
	if patch.Role != nil {
		role := strings.TrimSpace(*patch.Role)
		if role == "" {
			return nil, model.NewValidationError("role", "空にはできません")
		}
		patch.Role = &role
	}
	if patch.RoleLevel != nil && !patch.RoleLevel.Valid() {
		return nil, model.NewValidationError("role_level", "不明な値です: "+string(*patch.RoleLevel))
	}
	if patch.SourceSite != nil && !patch.SourceSite.Valid() {
		return nil, model.NewValidationError("source_site", "不明な値です: "+string(*patch.SourceSite))
	}
	if patch.FollowupStatus != nil && !patch.FollowupStatus.Valid() {
		return nil, model.NewValidationError("followup_status", "不明な値です: "+string(*patch.FollowupStatus))
	}
	if patch.JobURL != nil {
		jobURL, err := cleanJobURL(*patch.JobURL)
		if err != nil {
			return nil, err
		}
		patch.JobURL = &jobURL
	}
	for _, f := range []struct {
		name string
		v    **string
	}{
		{"location", &patch.Location},
		{"notes", &patch.Notes},
		{"outcome_reason", &patch.OutcomeReason},
		{"rejection_stage", &patch.RejectionStage},
	} {
		cleaned, err := s.cleanPtr(f.name, *f.v)
		if err != nil {
			return nil, err
		}
		*f.v = cleaned
	}
	if patch.DateApplied != nil {
		d := model.DateOf(*patch.DateApplied)
		patch.DateApplied = &d
	}
	if patch.NextFollowup != nil {
		d := model.DateOf(*patch.NextFollowup)
		patch.NextFollowup = &d
	}

	if patch.IsEmpty() {
		return s.Get(ctx, id)
	}

	app, err := s.repo.Update(ctx, id, patch, normalized)
	if err != nil {
		return nil, &model.PersistenceError{Op: "update application", Err: err}
	}
	if app == nil {
		return nil, model.NewApplicationNotFoundError(id)
	}
	return app, nil
}

// Delete は応募のみを削除する。ステータス履歴・フォローアップログ・監査ログは残る。
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return &model.PersistenceError{Op: "delete application", Err: err}
	}
	if !ok {
		return model.NewApplicationNotFoundError(id)
	}
	return nil
}

// SetStatus はステータスとstatus_updated_atを書き換える。
// 履歴の記録は行わないため、遷移エンジン以外から呼び出してはならない。
func (s *Service) SetStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
	ok, err := s.repo.UpdateStatus(ctx, id, status, at)
	if err != nil {
		return &model.PersistenceError{Op: "update status", Err: err}
	}
	if !ok {
		return model.NewApplicationNotFoundError(id)
	}
	return nil
}

// MarkFollowedUp はfollowup_statusをdoneにし、last_followed_up_atをatに設定する。
func (s *Service) MarkFollowedUp(ctx context.Context, id string, at time.Time) error {
	ok, err := s.repo.MarkFollowedUp(ctx, id, at)
	if err != nil {
		return &model.PersistenceError{Op: "mark followed up", Err: err}
	}
	if !ok {
		return model.NewApplicationNotFoundError(id)
	}
	return nil
}

// cleanText は自由記述テキストを検査する。タグを含む入力は切り詰めずに検証エラーにする。
func (s *Service) cleanText(field, raw string) (string, error) {
	cleaned, err := s.sanitizer.Clean(raw)
	if errors.Is(err, security.ErrMarkup) {
		return "", model.NewValidationError(field, "HTMLタグとして解釈される文字列は使用できません。'<' の後に空白を入れてください")
	}
	if err != nil {
		return "", model.NewValidationError(field, err.Error())
	}
	return cleaned, nil
}

func (s *Service) cleanPtr(field string, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	cleaned, err := s.cleanText(field, *v)
	if err != nil {
		return nil, err
	}
	return &cleaned, nil
}

// cleanJobURL は求人URLを検証する。空文字列は未指定として扱う。
func cleanJobURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", model.NewValidationError("job_url", "http または https のURLを指定してください")
	}
	return raw, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
