// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, application, system
	Action   string // ユーザー向け対処方法
	Field    string // 検証エラーの対象項目（該当する場合のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeApplicationNotFound = "APPLICATION_NOT_FOUND"
	ErrCodeInvalidStatus       = "INVALID_STATUS"
	ErrCodeStatusNotPatchable  = "STATUS_NOT_PATCHABLE"
	ErrCodePersistence         = "PERSISTENCE_FAILED"
)

// NewValidationError は必須項目の欠落や不正な値に対するバリデーションエラーを生成する。
// ストアを呼び出す前に返されるため、部分的な状態は残らない。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
		Field:    field,
	}
}

// NewApplicationNotFoundError は応募未検出エラーを生成する。
func NewApplicationNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeApplicationNotFound,
		Message:  fmt.Sprintf("指定された応募が見つかりません: %s", id),
		Category: "application",
		Action:   "応募IDを確認してください。",
	}
}

// NewInvalidStatusError は固定集合に含まれないステータスに対するエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Field:    "status",
		Action:   "ステータスには Applied、OA、Interview、Offer、Rejected のいずれかを指定してください。",
	}
}

// NewStatusNotPatchableError は部分更新でステータスを変更しようとした場合のエラーを生成する。
func NewStatusNotPatchableError() *APIError {
	return &APIError{
		Code:     ErrCodeStatusNotPatchable,
		Message:  "ステータスは部分更新では変更できません。",
		Category: "validation",
		Field:    "status",
		Action:   "POST /api/applications/{id}/status を使用してください。",
	}
}

// PersistenceError はストレージ呼び出しの失敗を表す。
// メッセージは下位のエラーをそのまま使う。
type PersistenceError struct {
	Op  string // 失敗した操作（例: "insert application"）
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap は下位のエラーを返す。
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// AuditWriteError は監査ログの書き込み失敗を表す。
// 常に非致命的で、呼び出し元には警告としてのみ伝える。
type AuditWriteError struct {
	EventType string
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit %s: %v", e.EventType, e.Err)
}

// Unwrap は下位のエラーを返す。
func (e *AuditWriteError) Unwrap() error {
	return e.Err
}

// 主更新のコミット後に実行される副次的な書き込みの種類。
const (
	StepStatusEvent = "status_event"
	StepAuditEvent  = "audit_event"
)

// Warning は主更新のコミット後に失敗した副次的な書き込みを表す。
// 主更新は取り消されない。
type Warning struct {
	Step string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Step, w.Err)
}
