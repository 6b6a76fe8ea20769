// Package model はドメインモデルを定義する。
package model

import "time"

// Status は応募の選考ステータスを表す。
type Status string

const (
	StatusApplied   Status = "Applied"
	StatusOA        Status = "OA"
	StatusInterview Status = "Interview"
	StatusOffer     Status = "Offer"
	StatusRejected  Status = "Rejected"
)

// AllStatuses は固定のステータス集合を表示順で返す。
func AllStatuses() []Status {
	return []Status{StatusApplied, StatusOA, StatusInterview, StatusOffer, StatusRejected}
}

// Valid はステータスが固定集合に含まれるかを返す。
func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusOA, StatusInterview, StatusOffer, StatusRejected:
		return true
	}
	return false
}

// RoleLevel は募集ポジションの区分を表す。
type RoleLevel string

const (
	RoleLevelIntern   RoleLevel = "Intern"
	RoleLevelNewGrad  RoleLevel = "New Grad"
	RoleLevelPartTime RoleLevel = "Part-time"
	RoleLevelFullTime RoleLevel = "Full-time"
	RoleLevelOther    RoleLevel = "Other"
)

// Valid はポジション区分が既知の値かを返す。
func (l RoleLevel) Valid() bool {
	switch l {
	case RoleLevelIntern, RoleLevelNewGrad, RoleLevelPartTime, RoleLevelFullTime, RoleLevelOther:
		return true
	}
	return false
}

// SourceSite は求人を見つけた経路を表す。
type SourceSite string

const (
	SourceLinkedIn  SourceSite = "linkedin"
	SourceIndeed    SourceSite = "indeed"
	SourceCompany   SourceSite = "company"
	SourceReferral  SourceSite = "referral"
	SourceHandshake SourceSite = "handshake"
	SourceOther     SourceSite = "other"
)

// Valid は経路が既知の値かを返す。
func (s SourceSite) Valid() bool {
	switch s {
	case SourceLinkedIn, SourceIndeed, SourceCompany, SourceReferral, SourceHandshake, SourceOther:
		return true
	}
	return false
}

// FollowupStatus はフォローアップの状態を表す。
type FollowupStatus string

const (
	FollowupPending FollowupStatus = "pending"
	FollowupDone    FollowupStatus = "done"
)

// Valid はフォローアップ状態が既知の値かを返す。
func (s FollowupStatus) Valid() bool {
	return s == FollowupPending || s == FollowupDone
}

// Application は追跡対象の応募1件を表す。
// CompanyNormalizedは書き込みのたびにCompanyから再計算される派生値。
type Application struct {
	ID                string
	Company           string
	CompanyNormalized string
	Role              string
	RoleLevel         RoleLevel
	Status            Status
	StatusUpdatedAt   time.Time
	DateApplied       time.Time // UTC 0時の暦日
	JobURL            *string
	Location          *string
	Notes             *string
	NextFollowup      *time.Time // UTC 0時の暦日
	FollowupStatus    FollowupStatus
	LastFollowedUpAt  *time.Time
	OutcomeReason     *string
	RejectionStage    *string
	SourceSite        SourceSite
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewApplication は応募作成時の入力値。
// 空の列挙値はデフォルト値で補完される。
type NewApplication struct {
	Company        string
	Role           string
	RoleLevel      RoleLevel
	Status         Status
	DateApplied    *time.Time
	JobURL         string
	Location       string
	Notes          string
	NextFollowup   *time.Time
	FollowupStatus FollowupStatus
	OutcomeReason  string
	RejectionStage string
	SourceSite     SourceSite
}

// ApplicationPatch は応募の部分更新。nilのフィールドは変更しない。
// 任意テキスト項目に空文字列を指定するとNULLに戻す。
// ステータスは遷移エンジン経由でのみ変更するため、ここには含めない。
type ApplicationPatch struct {
	Company           *string
	Role              *string
	RoleLevel         *RoleLevel
	DateApplied       *time.Time
	JobURL            *string
	Location          *string
	Notes             *string
	NextFollowup      *time.Time
	ClearNextFollowup bool
	FollowupStatus    *FollowupStatus
	OutcomeReason     *string
	RejectionStage    *string
	SourceSite        *SourceSite
}

// Fields はパッチに含まれるカラム名を返す。監査ログの記録に使う。
func (p ApplicationPatch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Company != nil, "company")
	add(p.Role != nil, "role")
	add(p.RoleLevel != nil, "role_level")
	add(p.DateApplied != nil, "date_applied")
	add(p.JobURL != nil, "job_url")
	add(p.Location != nil, "location")
	add(p.Notes != nil, "notes")
	add(p.NextFollowup != nil || p.ClearNextFollowup, "next_followup")
	add(p.FollowupStatus != nil, "followup_status")
	add(p.OutcomeReason != nil, "outcome_reason")
	add(p.RejectionStage != nil, "rejection_stage")
	add(p.SourceSite != nil, "source_site")
	return fields
}

// IsEmpty はパッチが何も変更しないかを返す。
func (p ApplicationPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}
