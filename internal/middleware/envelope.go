package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// レスポンスエンベロープのstatus値
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope は全APIレスポンス共通のJSON形式。
// countは一覧系のレスポンスでのみ設定する。
type Envelope struct {
	Status  string `json:"status"`
	Count   *int   `json:"count,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON は任意の値をJSONとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// WriteSuccess はdataを持つ成功エンベロープを書き込む。
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Data: data})
}

// WriteList は件数付きの成功エンベロープを書き込む。
func WriteList(w http.ResponseWriter, data any, count int) {
	WriteJSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Count: &count, Data: data})
}

// WriteError はエラーエンベロープを書き込む。
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, Envelope{Status: StatusError, Message: message})
}

// WriteInternalServerError は内部エラーのエンベロープを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "internal server error")
}
