// Package model はドメインモデルを定義する。
package model

import "time"

// Session は外部の認証基盤が発行したログインセッションを表す。
// コアはセッションを認可には使わず、操作者の記録にのみ使う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
