// Package stats はプラットフォーム別のユーザー統計を解決する。
// コンテスト集約と異なりフェイルクローズで、アダプタの失敗は型付きエラーとして呼び出し元に返す。
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/repository"
)

// 統計取得結果のメトリクスラベル。失敗時はmodel.ErrorKindの値を使う。
const (
	resultOK    = "ok"
	resultError = "error"
)

// UserFetcher は1プラットフォーム分のユーザー統計取得のインターフェース。
type UserFetcher interface {
	Platform() model.Platform
	FetchUser(ctx context.Context, handle string) (*model.UserStats, error)
}

// Recorder はユーザー統計取得の結果を記録するインターフェース。
type Recorder interface {
	RecordUserLookup(platform string, result string)
}

// ConnectedStats は連携済みプラットフォーム1件分の解決結果。
// SummaryとErrorはどちらか一方のみが設定される。
type ConnectedStats struct {
	Platform  model.Platform      `json:"platform"`
	Username  string              `json:"username"`
	Summary   *model.StatsSummary `json:"summary,omitempty"`
	Error     string              `json:"error,omitempty"`
	ErrorKind model.ErrorKind     `json:"errorKind,omitempty"`
}

// Resolver はプラットフォーム引数に応じてアダプタを選び、ユーザー統計を取得する。
type Resolver struct {
	fetchers    map[model.Platform]UserFetcher
	connections repository.ConnectionRepository
	logger      *slog.Logger
	recorder    Recorder
}

// NewResolver はResolverの新しいインスタンスを生成する。
// connectionsがnilの場合、GetConnectedStatsは使用できない。
func NewResolver(logger *slog.Logger, recorder Recorder, connections repository.ConnectionRepository, fetchers ...UserFetcher) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	byPlatform := make(map[model.Platform]UserFetcher, len(fetchers))
	for _, f := range fetchers {
		byPlatform[f.Platform()] = f
	}
	return &Resolver{
		fetchers:    byPlatform,
		connections: connections,
		logger:      logger,
		recorder:    recorder,
	}
}

// GetUserStats は指定プラットフォームのユーザー統計を取得する。
// ユーザー名は前後の空白を除去し、空の場合は外部呼び出しを行わずValidationErrorを返す。
func (r *Resolver) GetUserStats(ctx context.Context, platform model.Platform, username string) (*model.UserStats, error) {
	handle := strings.TrimSpace(username)
	if handle == "" {
		err := model.NewValidationError("username is required")
		r.record(platform, err)
		return nil, err
	}

	fetcher, ok := r.fetchers[platform]
	if !ok {
		err := model.NewNotSupportedError(platform, "user statistics lookup")
		r.record(platform, err)
		return nil, err
	}

	stats, err := fetcher.FetchUser(ctx, handle)
	if err != nil {
		r.logger.Warn("ユーザー統計の取得に失敗しました",
			slog.String("platform", platform.Slug()),
			slog.String("handle", handle),
			slog.String("error_kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		r.record(platform, err)
		return nil, err
	}
	if stats == nil || stats.Platform != platform {
		err := model.NewUpstreamError(platform, "adapter returned stats for a different platform")
		r.record(platform, err)
		return nil, err
	}

	r.record(platform, nil)
	return stats, nil
}

// GetUserSummary はGetUserStatsの結果を共通サブセットに正規化して返す。
func (r *Resolver) GetUserSummary(ctx context.Context, platform model.Platform, username string) (*model.StatsSummary, error) {
	stats, err := r.GetUserStats(ctx, platform, username)
	if err != nil {
		return nil, err
	}
	summary, err := stats.Summary()
	if err != nil {
		return nil, fmt.Errorf("統計サマリの生成に失敗しました: %w", err)
	}
	return summary, nil
}

// GetConnectedStats はユーザーの連携済みプラットフォームを並行に解決し、
// プラットフォーム順の結果を返す。個別の失敗は該当エントリのErrorに格納し、
// 全体のエラーとはしない。連携の読み出しに失敗した場合のみエラーを返す。
func (r *Resolver) GetConnectedStats(ctx context.Context, userID string) ([]ConnectedStats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.NewValidationError("user id is required")
	}
	if r.connections == nil {
		return nil, fmt.Errorf("connection repository is not configured")
	}

	conns, err := r.connections.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("連携一覧の取得に失敗しました: %w", err)
	}

	active := make([]*model.PlatformConnection, 0, len(conns))
	for _, c := range conns {
		if c.Connected {
			active = append(active, c)
		}
	}

	results := make([]ConnectedStats, len(active))
	var wg sync.WaitGroup
	for i, conn := range active {
		wg.Add(1)
		go func(i int, conn *model.PlatformConnection) {
			defer wg.Done()
			results[i] = r.resolveConnection(ctx, conn)
		}(i, conn)
	}
	wg.Wait()

	return results, nil
}

func (r *Resolver) resolveConnection(ctx context.Context, conn *model.PlatformConnection) ConnectedStats {
	entry := ConnectedStats{Platform: conn.Platform, Username: conn.Username}

	summary, err := r.GetUserSummary(ctx, conn.Platform, conn.Username)
	if err != nil {
		entry.Error = err.Error()
		entry.ErrorKind = model.KindOf(err)
		return entry
	}
	entry.Summary = summary
	return entry
}

func (r *Resolver) record(platform model.Platform, err error) {
	if r.recorder == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = string(model.KindOf(err))
		if result == "" {
			result = resultError
		}
	}
	r.recorder.RecordUserLookup(platform.Slug(), result)
}
