// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は応募のメモや所在地などの自由記述テキストを検査する。
// 値は入力どおりのプレーンテキストとして保存し、エスケープは表示側の責務とする。
package security

import (
	"errors"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrMarkup はテキストにHTMLタグとして解釈される部分が含まれることを表す。
var ErrMarkup = errors.New("HTMLタグとして解釈される文字列が含まれています")

// TextSanitizer は自由記述テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Clean は前後の空白を取り除き、改行をLFに揃えたテキストを返す。
	// タグやコメントとして解釈される部分を含む場合は内容を変えずにErrMarkupを返す。
	// "a < b" や "5<10" のようにタグにならない '<' はそのまま受け付ける。
	Clean(raw string) (string, error)
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// newlines はHTMLトークナイザと同じく改行コードをLFに揃える。
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Clean はStrictPolicyを通しても内容が変わらないテキストだけを受け付ける。
// StrictPolicyは & や引用符をエンティティに変換するため、両辺を復号してから比較する。
func (s *textSanitizer) Clean(raw string) (string, error) {
	text := newlines.Replace(strings.TrimSpace(raw))
	if text == "" {
		return "", nil
	}
	if html.UnescapeString(s.policy.Sanitize(text)) != html.UnescapeString(text) {
		return "", ErrMarkup
	}
	return text, nil
}
