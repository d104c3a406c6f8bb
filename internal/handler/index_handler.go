package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/contesthub/internal/middleware"
)

// healthPingTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthPingTimeout = 2 * time.Second

// Pinger は依存先の疎通確認のインターフェース。*sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// indexResponse はAPIのトップレベルの案内。
type indexResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

var endpointCatalogue = map[string]string{
	"/contests":                          "Get upcoming contests from Codeforces, LeetCode, and CodeChef",
	"/contests/codeforces":               "Get upcoming Codeforces contests",
	"/contests/leetcode":                 "Get upcoming LeetCode contests",
	"/contests/codechef":                 "Get upcoming CodeChef contests",
	"/users/{platform}/{handle}":         "Get user statistics from Codeforces or LeetCode",
	"/users/{platform}/{handle}/summary": "Get normalized user statistics",
	"/api/me/connections":                "List connected platform usernames (X-User-ID required)",
	"/api/me/connections/{platform}":     "PUT {username} to connect, DELETE to disconnect",
	"/api/me/stats":                      "Get statistics for every connected platform",
	"/health":                            "Health check",
	"/metrics":                           "Prometheus metrics",
}

// Index はAPIの案内とエンドポイント一覧を返す。
// GET /
func Index(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, indexResponse{
		Message:   "Coding Contests API",
		Endpoints: endpointCatalogue,
	})
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// pingerが指定されている場合はDBへの疎通も確認し、失敗時は503を返す。
func NewHealthHandler(pinger Pinger, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
			defer cancel()
			if err := pinger.PingContext(ctx); err != nil {
				logger.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
