package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/contesthub/internal/middleware"
	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/stats"
)

// StatsServiceInterface はユーザー統計ハンドラーが必要とするサービスインターフェース。
// stats.Resolverが実装する。
type StatsServiceInterface interface {
	GetUserStats(ctx context.Context, platform model.Platform, username string) (*model.UserStats, error)
	GetUserSummary(ctx context.Context, platform model.Platform, username string) (*model.StatsSummary, error)
	GetConnectedStats(ctx context.Context, userID string) ([]stats.ConnectedStats, error)
}

// StatsHandler はユーザー統計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
	logger  *slog.Logger
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{service: service, logger: logger}
}

// GetUser はプラットフォーム固有の形でユーザー統計を返す。
// GET /users/{platform}/{handle}
func (h *StatsHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	platform, ok := parsePlatformParam(w, chi.URLParam(r, "platform"))
	if !ok {
		return
	}
	handle := chi.URLParam(r, "handle")

	result, err := h.service.GetUserStats(r.Context(), platform, handle)
	if err != nil {
		writeDomainError(w, h.logger, err, userLookupMessage(err, platform, handle))
		return
	}

	middleware.WriteSuccess(w, result.Payload())
}

// GetUserSummary はプラットフォーム共通のサブセットに正規化したユーザー統計を返す。
// GET /users/{platform}/{handle}/summary
func (h *StatsHandler) GetUserSummary(w http.ResponseWriter, r *http.Request) {
	platform, ok := parsePlatformParam(w, chi.URLParam(r, "platform"))
	if !ok {
		return
	}
	handle := chi.URLParam(r, "handle")

	summary, err := h.service.GetUserSummary(r.Context(), platform, handle)
	if err != nil {
		writeDomainError(w, h.logger, err, userLookupMessage(err, platform, handle))
		return
	}

	middleware.WriteSuccess(w, summary)
}

// MyStats は認証済みユーザーの連携済みプラットフォームの統計をまとめて返す。
// 個々のプラットフォームの失敗は各エントリのerrorに入り、レスポンス自体は200となる。
// GET /api/me/stats
func (h *StatsHandler) MyStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	entries, err := h.service.GetConnectedStats(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err, err.Error())
		return
	}

	middleware.WriteList(w, entries, len(entries))
}
