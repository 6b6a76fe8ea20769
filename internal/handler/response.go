package handler

import (
	"time"

	"github.com/hitoshi/jobtrail/internal/analytics"
	"github.com/hitoshi/jobtrail/internal/lifecycle"
	"github.com/hitoshi/jobtrail/internal/model"
)

// applicationResponse は応募のAPIレスポンス。
type applicationResponse struct {
	ID                string     `json:"id"`
	Company           string     `json:"company"`
	CompanyNormalized string     `json:"company_normalized"`
	Role              string     `json:"role"`
	RoleLevel         string     `json:"role_level"`
	Status            string     `json:"status"`
	StatusUpdatedAt   time.Time  `json:"status_updated_at"`
	DateApplied       string     `json:"date_applied"`
	JobURL            *string    `json:"job_url"`
	Location          *string    `json:"location"`
	Notes             *string    `json:"notes"`
	NextFollowup      *string    `json:"next_followup"`
	FollowupStatus    string     `json:"followup_status"`
	LastFollowedUpAt  *time.Time `json:"last_followed_up_at"`
	OutcomeReason     *string    `json:"outcome_reason"`
	RejectionStage    *string    `json:"rejection_stage"`
	SourceSite        string     `json:"source_site"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// warningResponse は主更新後に失敗した副次的な書き込み。
type warningResponse struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// mutationResponse は変更系エンドポイントのレスポンス。
// 部分的に成功した場合はwarningsに失敗した書き込みが入る。
type mutationResponse struct {
	Application *applicationResponse `json:"application,omitempty"`
	Warnings    []warningResponse    `json:"warnings"`
}

type statusEventResponse struct {
	ID         string    `json:"id"`
	FromStatus *string   `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Source     string    `json:"source"`
	ChangedAt  time.Time `json:"changed_at"`
}

type followupLogResponse struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	Notes      string    `json:"notes"`
	FollowupAt time.Time `json:"followup_at"`
}

// historyResponse は応募1件分の履歴レスポンス。
type historyResponse struct {
	ApplicationID string                `json:"application_id"`
	ChainIntact   bool                  `json:"chain_intact"`
	StatusEvents  []statusEventResponse `json:"status_events"`
	Followups     []followupLogResponse `json:"followups"`
}

type weekCountResponse struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// analyticsResponse はダッシュボード用の集計レスポンス。
type analyticsResponse struct {
	Total      int                 `json:"total"`
	Interviews int                 `json:"interviews"`
	Offers     int                 `json:"offers"`
	ByStatus   map[string]int      `json:"by_status"`
	ByWeek     []weekCountResponse `json:"by_week"`
}

func toApplicationResponse(app *model.Application) *applicationResponse {
	resp := &applicationResponse{
		ID:                app.ID,
		Company:           app.Company,
		CompanyNormalized: app.CompanyNormalized,
		Role:              app.Role,
		RoleLevel:         string(app.RoleLevel),
		Status:            string(app.Status),
		StatusUpdatedAt:   app.StatusUpdatedAt,
		DateApplied:       model.FormatDate(app.DateApplied),
		JobURL:            app.JobURL,
		Location:          app.Location,
		Notes:             app.Notes,
		FollowupStatus:    string(app.FollowupStatus),
		LastFollowedUpAt:  app.LastFollowedUpAt,
		OutcomeReason:     app.OutcomeReason,
		RejectionStage:    app.RejectionStage,
		SourceSite:        string(app.SourceSite),
		CreatedAt:         app.CreatedAt,
		UpdatedAt:         app.UpdatedAt,
	}
	if app.NextFollowup != nil {
		d := model.FormatDate(*app.NextFollowup)
		resp.NextFollowup = &d
	}
	return resp
}

func toApplicationListResponse(apps []*model.Application) []*applicationResponse {
	out := make([]*applicationResponse, len(apps))
	for i, app := range apps {
		out[i] = toApplicationResponse(app)
	}
	return out
}

func toMutationResponse(result *lifecycle.Result) mutationResponse {
	resp := mutationResponse{Warnings: make([]warningResponse, 0, len(result.Warnings))}
	if result.Application != nil {
		resp.Application = toApplicationResponse(result.Application)
	}
	for _, w := range result.Warnings {
		resp.Warnings = append(resp.Warnings, warningResponse{Step: w.Step, Message: w.Err.Error()})
	}
	return resp
}

func toHistoryResponse(h *lifecycle.History) historyResponse {
	resp := historyResponse{
		ApplicationID: h.ApplicationID,
		ChainIntact:   h.ChainIntact,
		StatusEvents:  make([]statusEventResponse, len(h.StatusEvents)),
		Followups:     make([]followupLogResponse, len(h.Followups)),
	}
	for i, ev := range h.StatusEvents {
		var from *string
		if ev.FromStatus != nil {
			s := string(*ev.FromStatus)
			from = &s
		}
		resp.StatusEvents[i] = statusEventResponse{
			ID:         ev.ID,
			FromStatus: from,
			ToStatus:   string(ev.ToStatus),
			Source:     ev.Source,
			ChangedAt:  ev.ChangedAt,
		}
	}
	for i, l := range h.Followups {
		resp.Followups[i] = followupLogResponse{
			ID:         l.ID,
			Channel:    l.Channel,
			Notes:      l.Notes,
			FollowupAt: l.FollowupAt,
		}
	}
	return resp
}

func toAnalyticsResponse(s *analytics.Summary) analyticsResponse {
	resp := analyticsResponse{
		Total:      s.Total,
		Interviews: s.Interviews,
		Offers:     s.Offers,
		ByStatus:   make(map[string]int, len(s.ByStatus)),
		ByWeek:     make([]weekCountResponse, len(s.ByWeek)),
	}
	for status, count := range s.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	for i, wc := range s.ByWeek {
		resp.ByWeek[i] = weekCountResponse{Week: wc.Week, Count: wc.Count}
	}
	return resp
}
