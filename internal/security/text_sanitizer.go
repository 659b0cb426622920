// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は店舗名やケーキ名などの自由入力テキストからマークアップを除去する。
// bluemondayのStrictPolicyで全てのタグと属性を取り除き、プレーンテキストのみを残す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Clean は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// script, styleタグは中身ごと除去される。
	// エスケープされた文字実体は元の文字に戻すため、"&"などはそのまま保存される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Clean(raw string) string
}

const maxPasses = 4

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフで、複数のリクエストから共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean はテキストからマークアップを除去する。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	// 文字実体で書かれたタグが復元後に残らないよう、変化しなくなるまで繰り返す
	cleaned := raw
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(cleaned))
		if next == cleaned {
			break
		}
		cleaned = next
	}
	return strings.TrimSpace(cleaned)
}
