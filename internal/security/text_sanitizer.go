package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// TextSanitizer は外部APIのテキスト（コンテスト名など）をプレーンテキストに正規化する。
// bluemondayのStrictPolicyで全タグを除去し、残ったHTMLエンティティを復元して
// 連続する空白を1つにまとめる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// PlainText はHTMLを含みうる文字列からプレーンテキストを取り出す。
// 同一入力に対して常に同一出力を返す。
func (s *TextSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyはエスケープ済みで返すため、表示用に復元する
	unescaped := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(unescaped), " ")
}
