package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/jobtrail/internal/analytics"
)

// AnalyticsService はハンドラーが使用する集計サービスのインターフェース。
type AnalyticsService interface {
	Snapshot(ctx context.Context) (*analytics.Summary, error)
}

// AnalyticsHandler はダッシュボード集計のHTTPハンドラー。
type AnalyticsHandler struct {
	service AnalyticsService
}

// NewAnalyticsHandler はAnalyticsHandlerの新しいインスタンスを生成する。
func NewAnalyticsHandler(service AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// GetAnalytics は GET /api/analytics を処理する。
func (h *AnalyticsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Snapshot(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnalyticsResponse(summary))
}
