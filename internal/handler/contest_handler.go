package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/middleware"
)

// ContestServiceInterface はコンテストハンドラーが必要とするサービスインターフェース。
// contest.Aggregatorが実装する。
type ContestServiceInterface interface {
	// GetAllContests は全プラットフォームの開催予定コンテストを開始時刻順で返す。失敗しない。
	GetAllContests(ctx context.Context) []model.Contest
	// GetPlatformContests は指定プラットフォームの開催予定コンテストを返す。失敗しない。
	GetPlatformContests(ctx context.Context, platform model.Platform) []model.Contest
}

// ContestHandler はコンテスト一覧のHTTPハンドラー。
type ContestHandler struct {
	service ContestServiceInterface
}

// NewContestHandler はContestHandlerを生成する。
func NewContestHandler(service ContestServiceInterface) *ContestHandler {
	return &ContestHandler{service: service}
}

// ListAll は全プラットフォームの開催予定コンテストを返す。
// 一部のプラットフォームが失敗しても200で取得できた分を返す。
// GET /contests
func (h *ContestHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	contests := h.service.GetAllContests(r.Context())
	if contests == nil {
		contests = []model.Contest{}
	}
	middleware.WriteList(w, contests, len(contests))
}

// ListByPlatform は指定プラットフォームの開催予定コンテストを返す。
// GET /contests/{platform}
func (h *ContestHandler) ListByPlatform(w http.ResponseWriter, r *http.Request) {
	platform, ok := parsePlatformParam(w, chi.URLParam(r, "platform"))
	if !ok {
		return
	}

	contests := h.service.GetPlatformContests(r.Context(), platform)
	if contests == nil {
		contests = []model.Contest{}
	}
	middleware.WriteList(w, contests, len(contests))
}
