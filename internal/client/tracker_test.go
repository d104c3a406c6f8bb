package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hitoshi/contesthub/internal/model"
)

// mockSummaryFetcher はSummaryFetcherのモック実装。
type mockSummaryFetcher struct {
	calls atomic.Int32
	fn    func(ctx context.Context, platform model.Platform, handle string) (*model.StatsSummary, error)
}

func (m *mockSummaryFetcher) GetUserSummary(ctx context.Context, platform model.Platform, handle string) (*model.StatsSummary, error) {
	m.calls.Add(1)
	return m.fn(ctx, platform, handle)
}

func TestTrackerLoad_EmptyUsernameRecordsErrorWithoutFetching(t *testing.T) {
	f := &mockSummaryFetcher{}
	tr := NewTracker(f)

	got := tr.Load(context.Background(), model.PlatformCodeforces, "   ")

	if got.Error != "No username provided" {
		t.Errorf("Error = %q, want %q", got.Error, "No username provided")
	}
	if got.Loading {
		t.Error("Loading should be false")
	}
	if f.calls.Load() != 0 {
		t.Errorf("fetcher calls = %d, want 0", f.calls.Load())
	}
}

func TestTrackerLoad_RecordsSummary(t *testing.T) {
	f := &mockSummaryFetcher{fn: func(ctx context.Context, platform model.Platform, handle string) (*model.StatsSummary, error) {
		return &model.StatsSummary{Platform: platform, Username: handle, Rating: 1900}, nil
	}}
	tr := NewTracker(f)

	got := tr.Load(context.Background(), model.PlatformLeetCode, "alice")
	if got.Summary == nil || got.Summary.Rating != 1900 || got.Error != "" || got.Loading {
		t.Errorf("state = %+v", got)
	}

	stored, ok := tr.State(model.PlatformLeetCode)
	if !ok || stored.Username != "alice" {
		t.Errorf("State() = %+v, %v", stored, ok)
	}
}

func TestTrackerLoad_ShowsLoadingWhileFetching(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := &mockSummaryFetcher{fn: func(ctx context.Context, platform model.Platform, handle string) (*model.StatsSummary, error) {
		close(entered)
		<-release
		return &model.StatsSummary{Platform: platform}, nil
	}}
	tr := NewTracker(f)

	done := make(chan PlatformState)
	go func() { done <- tr.Load(context.Background(), model.PlatformCodeforces, "tourist") }()

	<-entered
	s, ok := tr.State(model.PlatformCodeforces)
	if !ok || !s.Loading {
		t.Errorf("state during fetch = %+v, want loading", s)
	}
	close(release)

	if final := <-done; final.Loading {
		t.Error("Loading should be cleared after fetch")
	}
}

func TestTrackerLoad_RecordsErrorKind(t *testing.T) {
	f := &mockSummaryFetcher{fn: func(ctx context.Context, platform model.Platform, handle string) (*model.StatsSummary, error) {
		return nil, model.NewNotFoundError(platform, handle)
	}}
	tr := NewTracker(f)

	got := tr.Load(context.Background(), model.PlatformLeetCode, "ghost")
	if got.ErrorKind != model.KindNotFound || got.Summary != nil || got.Error == "" {
		t.Errorf("state = %+v", got)
	}
}

func TestTrackerLoadAll_ReturnsPlatformOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[model.Platform]string{}
	f := &mockSummaryFetcher{fn: func(ctx context.Context, platform model.Platform, handle string) (*model.StatsSummary, error) {
		mu.Lock()
		seen[platform] = handle
		mu.Unlock()
		return &model.StatsSummary{Platform: platform, Username: handle}, nil
	}}
	tr := NewTracker(f)

	got := tr.LoadAll(context.Background(), map[model.Platform]string{
		model.PlatformCodeChef:   "",
		model.PlatformLeetCode:   "alice",
		model.PlatformCodeforces: "tourist",
	})

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, p := range model.AllPlatforms {
		if got[i].Platform != p {
			t.Errorf("got[%d].Platform = %s, want %s", i, got[i].Platform, p)
		}
	}
	if got[2].Error != "No username provided" {
		t.Errorf("codechef error = %q", got[2].Error)
	}
	if f.calls.Load() != 2 {
		t.Errorf("fetcher calls = %d, want 2", f.calls.Load())
	}
	if seen[model.PlatformCodeforces] != "tourist" {
		t.Errorf("codeforces handle = %q", seen[model.PlatformCodeforces])
	}
}

func TestTracker_StateUnknownPlatform(t *testing.T) {
	tr := NewTracker(&mockSummaryFetcher{})
	if _, ok := tr.State(model.PlatformCodeChef); ok {
		t.Error("State() ok = true for unloaded platform")
	}
	if len(tr.States()) != 0 {
		t.Error("States() should be empty initially")
	}
}
