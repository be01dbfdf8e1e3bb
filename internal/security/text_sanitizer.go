// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はフォームから受け取った表示用テキスト（書名、著者名、ユーザー名）から
// マークアップを取り除き、セッションや注文に保存される値をプレーンテキストに限定する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト化のインターフェース。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyを用いたTextSanitizerの実装。
// Policyはスレッドセーフなため複数リクエストから共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// angleBrackets はエスケープ解除後に残った山括弧を除去する。
var angleBrackets = strings.NewReplacer("<", "", ">", "")

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyは&などをエスケープするため保存値は元の文字に戻すが、
// &lt;script&gt; のような入力がタグとして復元されないよう山括弧は落とす。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.TrimSpace(angleBrackets.Replace(cleaned))
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
