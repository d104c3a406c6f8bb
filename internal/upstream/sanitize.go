package upstream

// TextSanitizer は外部APIから受け取ったテキストをプレーンテキストに正規化する。
// security.TextSanitizerが実装する。
type TextSanitizer interface {
	PlainText(raw string) string
}

// PassthroughSanitizer は入力をそのまま返すTextSanitizer。テストやサニタイザ未指定時に使用する。
type PassthroughSanitizer struct{}

// PlainText は入力をそのまま返す。
func (PassthroughSanitizer) PlainText(raw string) string {
	return raw
}
