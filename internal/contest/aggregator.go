// Package contest は複数プラットフォームの開催予定コンテストを集約する。
package contest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/contesthub/internal/model"
)

// ContestSource は1プラットフォーム分のコンテスト取得のインターフェース。
// FetchContestsは想定内の失敗を内部で吸収し、空スライスを返すこと。
type ContestSource interface {
	Platform() model.Platform
	FetchContests(ctx context.Context) []model.Contest
}

// Recorder はコンテスト取得数のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordContestsFetched(platform string, count int)
}

// Aggregator は全プラットフォームのコンテスト取得を並行実行し、結果をマージする。
// 集約はフェイルオープンで、いずれのソースが失敗しても他の結果は返す。
type Aggregator struct {
	sources  []ContestSource
	logger   *slog.Logger
	recorder Recorder
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
// sourcesはmodel.AllPlatformsの順に並べ替えて保持する（未知のプラットフォームは末尾）。
func NewAggregator(logger *slog.Logger, recorder Recorder, sources ...ContestSource) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	ordered := make([]ContestSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return platformOrder(ordered[i].Platform()) < platformOrder(ordered[j].Platform())
	})
	return &Aggregator{
		sources:  ordered,
		logger:   logger,
		recorder: recorder,
	}
}

// GetAllContests は全ソースのFetchContestsを並行に呼び出し、全ての完了を待ってから
// プラットフォーム順に連結し、開始時刻の昇順で安定ソートして返す。
// 全ソースが失敗した場合も空スライスを返し、エラーにはしない。
func (a *Aggregator) GetAllContests(ctx context.Context) []model.Contest {
	start := time.Now()
	results := make([][]model.Contest, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src ContestSource) {
			defer wg.Done()
			results[i] = a.fetch(ctx, src)
		}(i, src)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]model.Contest, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	SortByStart(merged)

	a.logger.Info("コンテスト一覧を集約しました",
		slog.Int("source_count", len(a.sources)),
		slog.Int("contest_count", len(merged)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return merged
}

// GetPlatformContests は指定プラットフォームのコンテストのみを開始時刻順で返す。
// 対応するソースが無い場合や取得に失敗した場合は空スライスを返す。
func (a *Aggregator) GetPlatformContests(ctx context.Context, platform model.Platform) []model.Contest {
	for _, src := range a.sources {
		if src.Platform() != platform {
			continue
		}
		contests := a.fetch(ctx, src)
		SortByStart(contests)
		return contests
	}
	a.logger.Warn("コンテストソースが登録されていないプラットフォームです",
		slog.String("platform", platform.Slug()),
	)
	return []model.Contest{}
}

// Platforms は登録済みソースのプラットフォームを集約順で返す。
func (a *Aggregator) Platforms() []model.Platform {
	platforms := make([]model.Platform, len(a.sources))
	for i, src := range a.sources {
		platforms[i] = src.Platform()
	}
	return platforms
}

// fetch は1ソースを呼び出す。panicした場合も空スライスとして扱い、他のソースに波及させない。
func (a *Aggregator) fetch(ctx context.Context, src ContestSource) (contests []model.Contest) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("コンテストソースがpanicしました",
				slog.String("platform", src.Platform().Slug()),
				slog.String("panic", fmt.Sprint(rec)),
			)
			contests = []model.Contest{}
		}
		if a.recorder != nil {
			a.recorder.RecordContestsFetched(src.Platform().Slug(), len(contests))
		}
	}()

	contests = src.FetchContests(ctx)
	if contests == nil {
		contests = []model.Contest{}
	}
	return contests
}

// SortByStart は開始時刻の昇順で安定ソートする。同時刻は元の順序を保つ。
func SortByStart(contests []model.Contest) {
	sort.SliceStable(contests, func(i, j int) bool {
		return contests[i].StartTimeUnix < contests[j].StartTimeUnix
	})
}

func platformOrder(p model.Platform) int {
	for i, known := range model.AllPlatforms {
		if known == p {
			return i
		}
	}
	return len(model.AllPlatforms)
}
