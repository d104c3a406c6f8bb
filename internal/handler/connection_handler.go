package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/contesthub/internal/middleware"
	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/repository"
)

const (
	// maxConnectionBodySize はPUTボディの上限。
	maxConnectionBodySize = 4 << 10
	// maxUsernameLength はplatform_connections.usernameの列長。
	maxUsernameLength = 255
)

// ConnectionStoreInterface は連携ハンドラーが必要とする永続化インターフェース。
type ConnectionStoreInterface interface {
	ListByUserID(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
	Upsert(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error)
	Disconnect(ctx context.Context, userID string, platform model.Platform) error
}

// ConnectionHandler はプラットフォーム連携のHTTPハンドラー。
type ConnectionHandler struct {
	store  ConnectionStoreInterface
	logger *slog.Logger
}

// NewConnectionHandler はConnectionHandlerを生成する。
func NewConnectionHandler(store ConnectionStoreInterface, logger *slog.Logger) *ConnectionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionHandler{store: store, logger: logger}
}

type connectRequest struct {
	Username string `json:"username"`
}

// List は認証済みユーザーの連携一覧を返す。
// GET /api/me/connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	conns, err := h.store.ListByUserID(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err, "")
		return
	}
	middleware.WriteList(w, conns, len(conns))
}

// Connect はプラットフォームのユーザー名を登録または更新する。
// PUT /api/me/connections/{platform}
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	platform, ok := parsePlatformParam(w, chi.URLParam(r, "platform"))
	if !ok {
		return
	}

	var req connectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConnectionBodySize)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "request body must be JSON: {\"username\": \"...\"}")
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		middleware.WriteError(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(username) > maxUsernameLength {
		middleware.WriteError(w, http.StatusBadRequest, "username is too long")
		return
	}

	saved, err := h.store.Upsert(r.Context(), &model.PlatformConnection{
		UserID:    userID,
		Platform:  platform,
		Username:  username,
		Connected: true,
	})
	if err != nil {
		writeDomainError(w, h.logger, err, "")
		return
	}

	h.logger.Info("プラットフォームを連携しました",
		slog.String("user_id", userID),
		slog.String("platform", platform.Slug()),
	)
	middleware.WriteSuccess(w, saved)
}

// Disconnect はプラットフォームの連携を切断する。
// DELETE /api/me/connections/{platform}
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	platform, ok := parsePlatformParam(w, chi.URLParam(r, "platform"))
	if !ok {
		return
	}

	if err := h.store.Disconnect(r.Context(), userID, platform); err != nil {
		if errors.Is(err, repository.ErrConnectionNotFound) {
			middleware.WriteError(w, http.StatusNotFound, platform.String()+" is not connected")
			return
		}
		writeDomainError(w, h.logger, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}
