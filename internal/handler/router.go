// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/contesthub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder // nilの場合はステータスを記録しない

	// コンテスト
	Contests ContestServiceInterface

	// ユーザー統計
	Stats StatsServiceInterface

	// プラットフォーム連携
	Connections ConnectionStoreInterface

	// 運用
	DB             Pinger       // nilの場合はDB疎通を確認しない
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → StatusMetrics → SecurityHeaders → CORS → Identity → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewIdentityMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	contestHandler := NewContestHandler(deps.Contests)
	statsHandler := NewStatsHandler(deps.Stats, logger)
	connHandler := NewConnectionHandler(deps.Connections, logger)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.DB, logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 公開API ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/", Index)

		r.Route("/contests", func(r chi.Router) {
			r.Get("/", contestHandler.ListAll)
			r.Get("/{platform}", contestHandler.ListByPlatform)
		})

		// ユーザー統計は外部APIを複数回呼ぶため専用のレート制限を追加
		r.Route("/users/{platform}/{handle}", func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.UserLookupMiddleware())
			}
			r.Get("/", statsHandler.GetUser)
			r.Get("/summary", statsHandler.GetUserSummary)
		})

		// --- 認証が必要なルート ---
		r.Route("/api/me", func(r chi.Router) {
			r.Use(middleware.RequireIdentity())

			r.Route("/connections", func(r chi.Router) {
				r.Get("/", connHandler.List)
				r.Put("/{platform}", connHandler.Connect)
				r.Delete("/{platform}", connHandler.Disconnect)
			})

			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.UserLookupMiddleware()).Get("/stats", statsHandler.MyStats)
			} else {
				r.Get("/stats", statsHandler.MyStats)
			}
		})
	})

	return r
}
