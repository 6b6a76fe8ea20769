package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/jobtrail/internal/lifecycle"
	"github.com/hitoshi/jobtrail/internal/middleware"
	"github.com/hitoshi/jobtrail/internal/model"
)

// ApplicationReader はハンドラーが使用する応募参照のインターフェース。
type ApplicationReader interface {
	Get(ctx context.Context, id string) (*model.Application, error)
	List(ctx context.Context, status *model.Status) ([]*model.Application, error)
}

// LifecycleService はハンドラーが使用する応募ライフサイクル操作のインターフェース。
type LifecycleService interface {
	Create(ctx context.Context, sess *model.Session, in model.NewApplication, source string) (*lifecycle.Result, error)
	Update(ctx context.Context, sess *model.Session, id string, patch model.ApplicationPatch) (*lifecycle.Result, error)
	Delete(ctx context.Context, sess *model.Session, id string) (*lifecycle.Result, error)
	Transition(ctx context.Context, sess *model.Session, app *model.Application, to model.Status, source string) (*lifecycle.Result, error)
	MarkFollowupDone(ctx context.Context, sess *model.Session, app *model.Application, channel, notes string) (*lifecycle.Result, error)
	History(ctx context.Context, applicationID string) (*lifecycle.History, error)
}

// ApplicationHandler は応募関連のHTTPハンドラー。
type ApplicationHandler struct {
	apps      ApplicationReader
	lifecycle LifecycleService
}

// NewApplicationHandler はApplicationHandlerの新しいインスタンスを生成する。
func NewApplicationHandler(apps ApplicationReader, lc LifecycleService) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, lifecycle: lc}
}

// createApplicationRequest は応募作成リクエストのボディ。
type createApplicationRequest struct {
	Company        string `json:"company"`
	Role           string `json:"role"`
	RoleLevel      string `json:"role_level"`
	Status         string `json:"status"`
	DateApplied    string `json:"date_applied"`
	JobURL         string `json:"job_url"`
	Location       string `json:"location"`
	Notes          string `json:"notes"`
	NextFollowup   string `json:"next_followup"`
	FollowupStatus string `json:"followup_status"`
	OutcomeReason  string `json:"outcome_reason"`
	RejectionStage string `json:"rejection_stage"`
	SourceSite     string `json:"source_site"`
	Source         string `json:"source"`
}

// changeStatusRequest はステータス変更リクエストのボディ。
type changeStatusRequest struct {
	Status string `json:"status"`
	Source string `json:"source"`
}

// logFollowupRequest はフォローアップ記録リクエストのボディ。
type logFollowupRequest struct {
	Channel string `json:"channel"`
	Notes   string `json:"notes"`
}

// ListApplications は GET /api/applications を処理する。
// statusクエリパラメータで絞り込める。
func (h *ApplicationHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	var status *model.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.Status(raw)
		status = &s
	}

	apps, err := h.apps.List(r.Context(), status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationListResponse(apps))
}

// GetApplication は GET /api/applications/{id} を処理する。
func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.apps.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// CreateApplication は POST /api/applications を処理する。
// 作成に成功すると201を返し、副次的な書き込みの失敗はwarningsに含める。
func (h *ApplicationHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	in := model.NewApplication{
		Company:        req.Company,
		Role:           req.Role,
		RoleLevel:      model.RoleLevel(req.RoleLevel),
		Status:         model.Status(req.Status),
		JobURL:         req.JobURL,
		Location:       req.Location,
		Notes:          req.Notes,
		FollowupStatus: model.FollowupStatus(req.FollowupStatus),
		OutcomeReason:  req.OutcomeReason,
		RejectionStage: req.RejectionStage,
		SourceSite:     model.SourceSite(req.SourceSite),
	}
	if req.DateApplied != "" {
		d, err := model.ParseDate(req.DateApplied)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("date_applied", "YYYY-MM-DD形式で指定してください"))
			return
		}
		in.DateApplied = &d
	}
	if req.NextFollowup != "" {
		d, err := model.ParseDate(req.NextFollowup)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("next_followup", "YYYY-MM-DD形式で指定してください"))
			return
		}
		in.NextFollowup = &d
	}

	result, err := h.lifecycle.Create(r.Context(), middleware.SessionFromContext(r.Context()), in, req.Source)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMutationResponse(result))
}

// UpdateApplication は PATCH /api/applications/{id} を処理する。
// ボディに含まれたキーのみを更新する。statusは変更できない。
func (h *ApplicationHandler) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	patch, apiErr := decodePatch(fields)
	if apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	result, err := h.lifecycle.Update(r.Context(), middleware.SessionFromContext(r.Context()), id, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMutationResponse(result))
}

// DeleteApplication は DELETE /api/applications/{id} を処理する。
// 警告がなければ204、監査ログの書き込みに失敗した場合は200で警告を返す。
func (h *ApplicationHandler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	result, err := h.lifecycle.Delete(r.Context(), middleware.SessionFromContext(r.Context()), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if len(result.Warnings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(result))
}

// ChangeStatus は POST /api/applications/{id}/status を処理する。
func (h *ApplicationHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	to := model.Status(req.Status)
	if !to.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError(req.Status))
		return
	}

	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.apps.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.lifecycle.Transition(r.Context(), middleware.SessionFromContext(r.Context()), app, to, req.Source)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMutationResponse(result))
}

// LogFollowup は POST /api/applications/{id}/followups を処理する。
// ボディは省略可能で、省略時はデフォルトのチャネルとメモを使う。
func (h *ApplicationHandler) LogFollowup(w http.ResponseWriter, r *http.Request) {
	var req logFollowupRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
			return
		}
	}

	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.apps.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.lifecycle.MarkFollowupDone(r.Context(), middleware.SessionFromContext(r.Context()), app, req.Channel, req.Notes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMutationResponse(result))
}

// GetHistory は GET /api/applications/{id}/history を処理する。
// 応募が削除済みでも履歴は返る。
func (h *ApplicationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	history, err := h.lifecycle.History(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toHistoryResponse(history))
}

// decodePatch はPATCHボディのキーごとの値をApplicationPatchに変換する。
// next_followupにnullを指定すると期日を消去する。
func decodePatch(fields map[string]json.RawMessage) (model.ApplicationPatch, *model.APIError) {
	var patch model.ApplicationPatch
	for key, raw := range fields {
		if key == "status" {
			return patch, model.NewStatusNotPatchableError()
		}

		if key == "next_followup" && isJSONNull(raw) {
			patch.ClearNextFollowup = true
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return patch, model.NewValidationError(key, "文字列で指定してください")
		}

		switch key {
		case "company":
			patch.Company = &s
		case "role":
			patch.Role = &s
		case "role_level":
			v := model.RoleLevel(s)
			patch.RoleLevel = &v
		case "date_applied", "next_followup":
			d, err := model.ParseDate(s)
			if err != nil {
				return patch, model.NewValidationError(key, "YYYY-MM-DD形式で指定してください")
			}
			if key == "date_applied" {
				patch.DateApplied = &d
			} else {
				patch.NextFollowup = &d
			}
		case "job_url":
			patch.JobURL = &s
		case "location":
			patch.Location = &s
		case "notes":
			patch.Notes = &s
		case "followup_status":
			v := model.FollowupStatus(s)
			patch.FollowupStatus = &v
		case "outcome_reason":
			patch.OutcomeReason = &s
		case "rejection_stage":
			patch.RejectionStage = &s
		case "source_site":
			v := model.SourceSite(s)
			patch.SourceSite = &v
		default:
			return patch, model.NewValidationError(key, "更新できない項目です")
		}
	}
	return patch, nil
}

// applicationID はパスの{id}をUUIDとして検証し、正規形で返す。
// UUIDとして解釈できないIDの応募は存在しえないため、404を書き込んでfalseを返す。
func applicationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewApplicationNotFoundError(raw))
		return "", false
	}
	return id.String(), true
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
