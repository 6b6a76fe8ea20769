package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/jobtrail/internal/analytics"
	"github.com/hitoshi/jobtrail/internal/lifecycle"
	"github.com/hitoshi/jobtrail/internal/middleware"
	"github.com/hitoshi/jobtrail/internal/model"
)

// テストで使う応募ID。パスの{id}はUUIDとして検証されるため実在しうる形式にする。
const (
	testAppID     = "6f1c2b7e-3d4a-4f5b-9c8d-1e2f3a4b5c6d"
	testMissingID = "0b8e9a52-7c41-4d3e-8f26-5a9d1c7e4b30"
)

// --- モック定義 ---

// mockApplicationReader はApplicationReaderのモック実装。
type mockApplicationReader struct {
	getFn  func(ctx context.Context, id string) (*model.Application, error)
	listFn func(ctx context.Context, status *model.Status) ([]*model.Application, error)
}

func (m *mockApplicationReader) Get(ctx context.Context, id string) (*model.Application, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewApplicationNotFoundError(id)
}

func (m *mockApplicationReader) List(ctx context.Context, status *model.Status) ([]*model.Application, error) {
	if m.listFn != nil {
		return m.listFn(ctx, status)
	}
	return []*model.Application{}, nil
}

// mockLifecycleService はLifecycleServiceのモック実装。
type mockLifecycleService struct {
	createFn       func(ctx context.Context, sess *model.Session, in model.NewApplication, source string) (*lifecycle.Result, error)
	updateFn       func(ctx context.Context, sess *model.Session, id string, patch model.ApplicationPatch) (*lifecycle.Result, error)
	deleteFn       func(ctx context.Context, sess *model.Session, id string) (*lifecycle.Result, error)
	transitionFn   func(ctx context.Context, sess *model.Session, app *model.Application, to model.Status, source string) (*lifecycle.Result, error)
	markFollowupFn func(ctx context.Context, sess *model.Session, app *model.Application, channel, notes string) (*lifecycle.Result, error)
	historyFn      func(ctx context.Context, applicationID string) (*lifecycle.History, error)
}

func (m *mockLifecycleService) Create(ctx context.Context, sess *model.Session, in model.NewApplication, source string) (*lifecycle.Result, error) {
	if m.createFn != nil {
		return m.createFn(ctx, sess, in, source)
	}
	return &lifecycle.Result{Application: &model.Application{ID: testAppID}}, nil
}

func (m *mockLifecycleService) Update(ctx context.Context, sess *model.Session, id string, patch model.ApplicationPatch) (*lifecycle.Result, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, sess, id, patch)
	}
	return &lifecycle.Result{Application: &model.Application{ID: id}}, nil
}

func (m *mockLifecycleService) Delete(ctx context.Context, sess *model.Session, id string) (*lifecycle.Result, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, sess, id)
	}
	return &lifecycle.Result{}, nil
}

func (m *mockLifecycleService) Transition(ctx context.Context, sess *model.Session, app *model.Application, to model.Status, source string) (*lifecycle.Result, error) {
	if m.transitionFn != nil {
		return m.transitionFn(ctx, sess, app, to, source)
	}
	next := *app
	next.Status = to
	return &lifecycle.Result{Application: &next}, nil
}

func (m *mockLifecycleService) MarkFollowupDone(ctx context.Context, sess *model.Session, app *model.Application, channel, notes string) (*lifecycle.Result, error) {
	if m.markFollowupFn != nil {
		return m.markFollowupFn(ctx, sess, app, channel, notes)
	}
	return &lifecycle.Result{Application: app}, nil
}

func (m *mockLifecycleService) History(ctx context.Context, applicationID string) (*lifecycle.History, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, applicationID)
	}
	return &lifecycle.History{ApplicationID: applicationID, ChainIntact: true}, nil
}

// mockAnalyticsService はAnalyticsServiceのモック実装。
type mockAnalyticsService struct {
	snapshotFn func(ctx context.Context) (*analytics.Summary, error)
}

func (m *mockAnalyticsService) Snapshot(ctx context.Context) (*analytics.Summary, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx)
	}
	return &analytics.Summary{ByStatus: map[model.Status]int{}}, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithSession(r.Context(), &model.Session{ID: "sess-1", UserID: userID})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// sampleApplication はテスト用の応募を返す。
func sampleApplication(id string) *model.Application {
	changed := time.Date(2024, 3, 5, 14, 30, 0, 123456000, time.UTC)
	return &model.Application{
		ID:                id,
		Company:           "Google, Inc.",
		CompanyNormalized: "google inc.",
		Role:              "SWE Intern",
		RoleLevel:         model.RoleLevelIntern,
		Status:            model.StatusApplied,
		StatusUpdatedAt:   changed,
		DateApplied:       time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		FollowupStatus:    model.FollowupPending,
		SourceSite:        model.SourceLinkedIn,
		CreatedAt:         changed,
		UpdatedAt:         changed,
	}
}
