package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimiterConfig(generalBurst, mutationBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0),
		GeneralBurst:    generalBurst,
		MutationRate:    rate.Limit(1.0 / 60.0),
		MutationBurst:   mutationBurst,
		CleanupInterval: time.Minute,
	}
}

func serveAs(handler http.Handler, method, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/applications", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), userID))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestPerMinute(t *testing.T) {
	cfg := PerMinute(120, 30)
	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want 2/s", cfg.GeneralRate)
	}
	if cfg.MutationRate != rate.Limit(0.5) {
		t.Errorf("MutationRate = %v, want 0.5/s", cfg.MutationRate)
	}
	if cfg.GeneralBurst != 120 || cfg.MutationBurst != 30 {
		t.Errorf("bursts = %d/%d", cfg.GeneralBurst, cfg.MutationBurst)
	}
	if DefaultRateLimiterConfig() != cfg {
		t.Error("default config should be 120/30 per minute")
	}
}

// TestGeneralMiddleware_Returns429WhenLimitExceeded はバーストを超えると429になることを検証する。
func TestGeneralMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(2, 10))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		if w := serveAs(handler, http.MethodGet, "user-1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := serveAs(handler, http.MethodGet, "user-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}

	// 他のユーザーには影響しない
	if w := serveAs(handler, http.MethodGet, "user-2"); w.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

// TestMutationMiddleware_OnlyLimitsMutations は変更系メソッドのみが制限されることを検証する。
func TestMutationMiddleware_OnlyLimitsMutations(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(100, 1))
	defer rl.Stop()
	handler := rl.MutationMiddleware()(okHandler())

	if w := serveAs(handler, http.MethodPost, "user-1"); w.Code != http.StatusOK {
		t.Fatalf("first POST status = %d, want 200", w.Code)
	}
	if w := serveAs(handler, http.MethodPatch, "user-1"); w.Code != http.StatusTooManyRequests {
		t.Errorf("second mutation status = %d, want 429", w.Code)
	}
	for i := 0; i < 5; i++ {
		if w := serveAs(handler, http.MethodGet, "user-1"); w.Code != http.StatusOK {
			t.Errorf("GET %d status = %d, want 200", i, w.Code)
		}
	}
	if rl.MutationLimiterCount() != 1 {
		t.Errorf("MutationLimiterCount = %d, want 1", rl.MutationLimiterCount())
	}
}

func TestRateLimiter_RequiresUser(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/applications", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// TestRateLimiter_Cleanup は古いエントリが削除されることを検証する。
func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(5, 5))
	defer rl.Stop()
	handler := rl.MutationMiddleware()(rl.GeneralMiddleware()(okHandler()))

	serveAs(handler, http.MethodPost, "user-1")
	serveAs(handler, http.MethodPost, "user-2")

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 2 || rl.MutationLimiterCount() != 2 {
		t.Fatal("fresh entries should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.MutationLimiterCount() != 0 {
		t.Errorf("counts after cleanup = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.MutationLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1))
	rl.Stop()
	rl.Stop()
}
