package client

import (
	"context"
	"strings"
	"sync"

	"github.com/hitoshi/contesthub/internal/model"
)

// noUsernameMessage はユーザー名未設定時にエラー欄へ記録する文言。
const noUsernameMessage = "No username provided"

// SummaryFetcher はTrackerが利用するユーザー統計取得のインターフェース。
// *Clientが実装する。
type SummaryFetcher interface {
	GetUserSummary(ctx context.Context, platform model.Platform, handle string) (*model.StatsSummary, error)
}

// PlatformState は1プラットフォーム分の読み込み状態。
// 読み込み完了後はSummaryとErrorのどちらか一方のみが設定される。
type PlatformState struct {
	Platform  model.Platform      `json:"platform"`
	Username  string              `json:"username"`
	Loading   bool                `json:"loading"`
	Error     string              `json:"error,omitempty"`
	ErrorKind model.ErrorKind     `json:"errorKind,omitempty"`
	Summary   *model.StatsSummary `json:"summary,omitempty"`
}

// Tracker はプラットフォームごとのユーザー統計と読み込み状態をメモリ上に保持する。
// 状態はTrackerの生存期間中のみ有効で、永続化しない。
type Tracker struct {
	fetcher SummaryFetcher

	mu     sync.RWMutex
	states map[model.Platform]*PlatformState
}

// NewTracker はTrackerの新しいインスタンスを生成する。
func NewTracker(fetcher SummaryFetcher) *Tracker {
	return &Tracker{
		fetcher: fetcher,
		states:  make(map[model.Platform]*PlatformState),
	}
}

// Load は指定プラットフォームの統計を取得し、結果を状態に記録して返す。
// ユーザー名が空の場合は取得せずにエラーを記録する。
func (t *Tracker) Load(ctx context.Context, platform model.Platform, username string) PlatformState {
	username = strings.TrimSpace(username)
	if username == "" {
		return t.set(PlatformState{Platform: platform, Error: noUsernameMessage})
	}

	t.set(PlatformState{Platform: platform, Username: username, Loading: true})

	summary, err := t.fetcher.GetUserSummary(ctx, platform, username)
	if err != nil {
		return t.set(PlatformState{
			Platform:  platform,
			Username:  username,
			Error:     err.Error(),
			ErrorKind: model.KindOf(err),
		})
	}
	return t.set(PlatformState{Platform: platform, Username: username, Summary: summary})
}

// LoadAll は複数プラットフォームを並行に読み込み、model.AllPlatformsの順で状態を返す。
// usernamesに含まれないプラットフォームは対象外とする。
func (t *Tracker) LoadAll(ctx context.Context, usernames map[model.Platform]string) []PlatformState {
	var wg sync.WaitGroup
	for platform, username := range usernames {
		wg.Add(1)
		go func(platform model.Platform, username string) {
			defer wg.Done()
			t.Load(ctx, platform, username)
		}(platform, username)
	}
	wg.Wait()
	return t.States()
}

// State は指定プラットフォームの現在の状態を返す。未読み込みの場合はfalse。
func (t *Tracker) State(platform model.Platform) (PlatformState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[platform]
	if !ok {
		return PlatformState{}, false
	}
	return *s, true
}

// States は読み込み済みの全状態をmodel.AllPlatformsの順で返す。
func (t *Tracker) States() []PlatformState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PlatformState, 0, len(t.states))
	for _, p := range model.AllPlatforms {
		if s, ok := t.states[p]; ok {
			out = append(out, *s)
		}
	}
	return out
}

func (t *Tracker) set(s PlatformState) PlatformState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[s.Platform] = &s
	return s
}
