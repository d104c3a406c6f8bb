package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/contesthub/internal/middleware"
	"github.com/hitoshi/contesthub/internal/model"
)

// statusForError はドメインエラーの分類からHTTPステータスコードを決定する。
// 分類を持たないエラーは500とする。
func statusForError(err error) int {
	var de *model.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindNotSupported:
		return http.StatusNotImplemented
	case model.KindUpstream:
		return http.StatusBadGateway
	case model.KindNetwork:
		if model.IsTimeout(de) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userLookupMessage はユーザー統計取得失敗時のメッセージを組み立てる。
// 入力不正以外はプラットフォームとハンドルを含める。
func userLookupMessage(err error, platform model.Platform, handle string) string {
	var de *model.Error
	if !errors.As(err, &de) {
		return "internal server error"
	}
	if de.Kind == model.KindValidation {
		return de.Detail()
	}
	return fmt.Sprintf("failed to fetch data for %s on %s: %s", handle, platform.Slug(), de.Detail())
}

// writeDomainError はドメインエラーをエラーエンベロープとして書き込む。
// 分類を持たないエラーは詳細をログのみに記録する。
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error, message string) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	middleware.WriteError(w, status, message)
}

// parsePlatformParam はURLパラメータのプラットフォームを解決する。
// 未知の値の場合は400を書き込んでfalseを返す。
func parsePlatformParam(w http.ResponseWriter, raw string) (model.Platform, bool) {
	platform, err := model.ParsePlatform(raw)
	if err != nil {
		var de *model.Error
		msg := err.Error()
		if errors.As(err, &de) {
			msg = de.Detail()
		}
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return "", false
	}
	return platform, true
}
