package application

import (
	"strings"
	"unicode"
)

// Normalize は会社名を重複排除・検索用のキーに正規化する。
// 前後の空白除去、小文字化、連続する空白の1文字への縮約を行い、
// 最後に [a-z0-9 &.-] 以外の文字を取り除く。
// 記号の除去は空白の縮約後に行うため、"Foo / Bar" は "foo  bar" になり空白が2つ残る。
func Normalize(company string) string {
	s := strings.ToLower(strings.TrimSpace(company))
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	return strings.Map(func(r rune) rune {
		if keepRune(r) {
			return r
		}
		return -1
	}, s)
}

func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '&', r == '.', r == '-':
		return true
	}
	return false
}
