package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/contesthub/internal/middleware"
	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/stats"
)

// --- モック定義 ---

// mockContestService はContestServiceInterfaceのモック実装。
type mockContestService struct {
	getAllFn      func(ctx context.Context) []model.Contest
	getPlatformFn func(ctx context.Context, platform model.Platform) []model.Contest
}

func (m *mockContestService) GetAllContests(ctx context.Context) []model.Contest {
	if m.getAllFn != nil {
		return m.getAllFn(ctx)
	}
	return nil
}

func (m *mockContestService) GetPlatformContests(ctx context.Context, platform model.Platform) []model.Contest {
	if m.getPlatformFn != nil {
		return m.getPlatformFn(ctx, platform)
	}
	return nil
}

// mockStatsService はStatsServiceInterfaceのモック実装。
type mockStatsService struct {
	getUserStatsFn      func(ctx context.Context, platform model.Platform, username string) (*model.UserStats, error)
	getUserSummaryFn    func(ctx context.Context, platform model.Platform, username string) (*model.StatsSummary, error)
	getConnectedStatsFn func(ctx context.Context, userID string) ([]stats.ConnectedStats, error)
}

func (m *mockStatsService) GetUserStats(ctx context.Context, platform model.Platform, username string) (*model.UserStats, error) {
	if m.getUserStatsFn != nil {
		return m.getUserStatsFn(ctx, platform, username)
	}
	return nil, nil
}

func (m *mockStatsService) GetUserSummary(ctx context.Context, platform model.Platform, username string) (*model.StatsSummary, error) {
	if m.getUserSummaryFn != nil {
		return m.getUserSummaryFn(ctx, platform, username)
	}
	return nil, nil
}

func (m *mockStatsService) GetConnectedStats(ctx context.Context, userID string) ([]stats.ConnectedStats, error) {
	if m.getConnectedStatsFn != nil {
		return m.getConnectedStatsFn(ctx, userID)
	}
	return []stats.ConnectedStats{}, nil
}

// mockConnectionStore はConnectionStoreInterfaceのモック実装。
type mockConnectionStore struct {
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
	upsertFn       func(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error)
	disconnectFn   func(ctx context.Context, userID string, platform model.Platform) error
}

func (m *mockConnectionStore) ListByUserID(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return []*model.PlatformConnection{}, nil
}

func (m *mockConnectionStore) Upsert(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, conn)
	}
	return conn, nil
}

func (m *mockConnectionStore) Disconnect(ctx context.Context, userID string, platform model.Platform) error {
	if m.disconnectFn != nil {
		return m.disconnectFn(ctx, userID, platform)
	}
	return nil
}

// --- テストヘルパー ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
// kvはキーと値を交互に並べる。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// testEnvelope はレスポンスエンベロープのデコード先。
type testEnvelope struct {
	Status  string          `json:"status"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// parseEnvelope はレスポンスボディをエンベロープとしてパースするヘルパー。
func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return env
}
