package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind はドメインエラーの分類を表す。
// HTTPステータスへの変換はハンドラー層でのみ行う。
type ErrorKind string

// 定義済みエラー分類
const (
	KindValidation   ErrorKind = "validation"
	KindNetwork      ErrorKind = "network"
	KindUpstream     ErrorKind = "upstream"
	KindNotFound     ErrorKind = "not_found"
	KindNotSupported ErrorKind = "not_supported"
)

// Error はアダプタ・リゾルバが返す型付きエラー。
type Error struct {
	Kind     ErrorKind
	Platform Platform // 該当しない場合は空
	Message  string
	Err      error // 原因となったエラー（任意）
}

// errors.Is で分類のみを比較するためのセンチネル。
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrUpstream     = &Error{Kind: KindUpstream}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrNotSupported = &Error{Kind: KindNotSupported}
)

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	msg := e.Detail()
	if e.Platform != "" {
		return fmt.Sprintf("%s: %s", e.Platform.Slug(), msg)
	}
	return msg
}

// Detail はプラットフォーム接頭辞を除いたメッセージを返す。
func (e *Error) Detail() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Is は分類が一致すればtrueを返す。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf はエラーチェーンからErrorKindを取り出す。型付きエラーでなければ空文字を返す。
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsTimeout はエラーがタイムアウト起因かを判定する。
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// NewValidationError は入力不正エラーを生成する。ネットワークには到達しない。
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewNetworkError は応答が得られなかった（DNS/接続/タイムアウト）エラーを生成する。
func NewNetworkError(platform Platform, err error) *Error {
	return &Error{Kind: KindNetwork, Platform: platform, Message: "network error", Err: err}
}

// NewUpstreamError は到達できたがプラットフォーム側のペイロードが失敗を示すエラーを生成する。
func NewUpstreamError(platform Platform, message string) *Error {
	return &Error{Kind: KindUpstream, Platform: platform, Message: message}
}

// NewNotFoundError は対象ユーザーがプラットフォーム上に存在しないエラーを生成する。
func NewNotFoundError(platform Platform, handle string) *Error {
	return &Error{Kind: KindNotFound, Platform: platform, Message: fmt.Sprintf("user %q not found", handle)}
}

// NewNotSupportedError は意図的に未実装の連携に対するエラーを生成する。
func NewNotSupportedError(platform Platform, feature string) *Error {
	return &Error{Kind: KindNotSupported, Platform: platform, Message: fmt.Sprintf("%s is not supported", feature)}
}
