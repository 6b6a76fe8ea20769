// Package lifecycle は応募のステータス遷移、フォローアップ、削除といった
// ライフサイクル操作を提供する。
//
// どの操作も主更新（応募エンティティへの書き込み）を最初にコミットし、
// その後に履歴と監査ログを互いに独立したベストエフォートの書き込みとして行う。
// 副次的な書き込みの失敗はResult.Warningsで報告し、主更新は取り消さない。
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/jobtrail/internal/audit"
	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
)

// Store は応募エンティティの永続化を担うインターフェース。
// application.Serviceが実装する。
type Store interface {
	Create(ctx context.Context, in model.NewApplication) (*model.Application, error)
	Get(ctx context.Context, id string) (*model.Application, error)
	Update(ctx context.Context, id string, patch model.ApplicationPatch) (*model.Application, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status model.Status, at time.Time) error
	MarkFollowedUp(ctx context.Context, id string, at time.Time) error
}

// AuditRecorder は監査ログの記録インターフェース。
// 戻り値のエラーは常に非致命的として扱う。
type AuditRecorder interface {
	Record(ctx context.Context, eventType string, applicationID *string, actorID string, payload any) error
}

// MetricsRecorder はライフサイクル操作のメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	ApplicationCreated()
	ApplicationDeleted()
	StatusTransition(from, to model.Status)
	FollowupLogged()
	SecondaryWriteFailed(step string)
}

// Result は変更系操作の結果。
// Warningsは主更新のコミット後に失敗した副次的な書き込みを表す。
type Result struct {
	Application *model.Application
	Warnings    []model.Warning
}

// Deps はEngineの依存関係を保持する。
type Deps struct {
	Store         Store
	StatusEvents  repository.StatusEventRepository
	Followups     repository.FollowupRepository
	Audit         AuditRecorder
	Metrics       MetricsRecorder // nilの場合は記録しない
	Logger        *slog.Logger
	DefaultSource string // 空の場合は model.DefaultEventSource
}

// Engine はライフサイクル操作を実行する。
// 内部にロックは持たず、同一応募への同時遷移はストアの後勝ちとなる。
type Engine struct {
	store         Store
	statusEvents  repository.StatusEventRepository
	followups     repository.FollowupRepository
	audit         AuditRecorder
	metrics       MetricsRecorder
	logger        *slog.Logger
	defaultSource string
	now           func() time.Time
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(deps Deps) *Engine {
	e := &Engine{
		store:         deps.Store,
		statusEvents:  deps.StatusEvents,
		followups:     deps.Followups,
		audit:         deps.Audit,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		defaultSource: deps.DefaultSource,
		now:           time.Now,
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.defaultSource == "" {
		e.defaultSource = model.DefaultEventSource
	}
	return e
}

// Create は応募を作成し、作成時の合成ステータスイベント（from=null）と
// app_created監査イベントを記録する。
func (e *Engine) Create(ctx context.Context, sess *model.Session, in model.NewApplication, source string) (*Result, error) {
	app, err := e.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	e.metrics.ApplicationCreated()

	result := &Result{Application: app}
	e.appendStatusEvent(ctx, result, &model.StatusEvent{
		ApplicationID: app.ID,
		FromStatus:    nil,
		ToStatus:      app.Status,
		Source:        e.sourceOrDefault(source),
		ChangedAt:     app.StatusUpdatedAt,
	})
	e.recordAudit(ctx, result, sess, audit.EventAppCreated, app.ID, createdPayload(app))

	e.logger.Info("応募を作成しました",
		"application_id", app.ID,
		"status", app.Status,
		"user_id", actorOf(sess),
	)
	return result, nil
}

// Update はステータス以外の項目を部分更新し、変更した項目名をapp_updatedとして記録する。
func (e *Engine) Update(ctx context.Context, sess *model.Session, id string, patch model.ApplicationPatch) (*Result, error) {
	app, err := e.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	result := &Result{Application: app}
	if fields := patch.Fields(); len(fields) > 0 {
		e.recordAudit(ctx, result, sess, audit.EventAppUpdated, app.ID, map[string]any{"fields": fields})
	}
	return result, nil
}

// Transition は応募のステータスをtoへ遷移させる。
//
// toが現在のステータスと同じ場合は何もせず、受け取った応募をそのまま返す。
// それ以外の場合はまずストアのステータスを更新し（失敗時はPersistenceErrorで中断）、
// 続いてステータスイベントとstatus_changed監査イベントをそれぞれ独立に記録する。
func (e *Engine) Transition(ctx context.Context, sess *model.Session, app *model.Application, to model.Status, source string) (*Result, error) {
	if !to.Valid() {
		return nil, model.NewInvalidStatusError(string(to))
	}
	if to == app.Status {
		return &Result{Application: app}, nil
	}

	from := app.Status
	at := nextStatusTime(app.StatusUpdatedAt, e.now())
	if err := e.store.SetStatus(ctx, app.ID, to, at); err != nil {
		return nil, err
	}
	e.metrics.StatusTransition(from, to)

	updated := *app
	updated.Status = to
	updated.StatusUpdatedAt = at
	result := &Result{Application: &updated}

	e.appendStatusEvent(ctx, result, &model.StatusEvent{
		ApplicationID: app.ID,
		FromStatus:    &from,
		ToStatus:      to,
		Source:        e.sourceOrDefault(source),
		ChangedAt:     at,
	})
	e.recordAudit(ctx, result, sess, audit.EventStatusChanged, app.ID, map[string]string{
		"from": string(from),
		"to":   string(to),
	})

	e.logger.Info("ステータスを遷移しました",
		"application_id", app.ID,
		"from", from,
		"to", to,
		"user_id", actorOf(sess),
	)
	return result, nil
}

// Delete は応募を削除する。削除の試行と完了をそれぞれ監査ログに記録する。
// ステータス履歴・フォローアップログ・監査ログは削除しない。
func (e *Engine) Delete(ctx context.Context, sess *model.Session, id string) (*Result, error) {
	result := &Result{}
	e.recordAudit(ctx, result, sess, audit.EventAppDeletedAttempt, id, nil)

	if err := e.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	e.metrics.ApplicationDeleted()

	e.recordAudit(ctx, result, sess, audit.EventAppDeleted, id, nil)
	e.logger.Info("応募を削除しました", "application_id", id, "user_id", actorOf(sess))
	return result, nil
}

// nextStatusTime は前回のstatus_updated_atより厳密に後の時刻を返す。
// ストアの精度に合わせてマイクロ秒に切り詰め、時計が進んでいなければ1マイクロ秒進める。
func nextStatusTime(prev, now time.Time) time.Time {
	at := now.UTC().Truncate(time.Microsecond)
	if !at.After(prev) {
		at = prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return at
}

func (e *Engine) sourceOrDefault(source string) string {
	if source == "" {
		return e.defaultSource
	}
	return source
}

func (e *Engine) appendStatusEvent(ctx context.Context, result *Result, event *model.StatusEvent) {
	if err := e.statusEvents.Append(ctx, event); err != nil {
		e.warn(result, model.StepStatusEvent, err)
		e.logger.Warn("ステータスイベントの記録に失敗しました",
			"application_id", event.ApplicationID,
			"step", model.StepStatusEvent,
			"error", err,
		)
	}
}

// recordAudit は監査イベントを記録する。ログ出力はRecorder側で行う。
func (e *Engine) recordAudit(ctx context.Context, result *Result, sess *model.Session, eventType, appID string, payload any) {
	if err := e.audit.Record(ctx, eventType, &appID, actorOf(sess), payload); err != nil {
		e.warn(result, model.StepAuditEvent, err)
	}
}

func (e *Engine) warn(result *Result, step string, err error) {
	result.Warnings = append(result.Warnings, model.Warning{Step: step, Err: err})
	e.metrics.SecondaryWriteFailed(step)
}

func createdPayload(app *model.Application) map[string]any {
	return map[string]any{
		"company":      app.Company,
		"role":         app.Role,
		"role_level":   app.RoleLevel,
		"status":       app.Status,
		"source_site":  app.SourceSite,
		"date_applied": model.FormatDate(app.DateApplied),
	}
}

func actorOf(sess *model.Session) string {
	if sess == nil {
		return ""
	}
	return sess.UserID
}

type noopMetrics struct{}

func (noopMetrics) ApplicationCreated()                    {}
func (noopMetrics) ApplicationDeleted()                    {}
func (noopMetrics) StatusTransition(from, to model.Status) {}
func (noopMetrics) FollowupLogged()                        {}
func (noopMetrics) SecondaryWriteFailed(step string)       {}
