package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/contesthub/internal/model"
)

// MemoryConnectionRepo はプロセス内メモリに連携を保持するリポジトリ。
// DATABASE_URL未設定時とテストで使用する。再起動で内容は失われる。
type MemoryConnectionRepo struct {
	mu    sync.RWMutex
	conns map[string]map[model.Platform]*model.PlatformConnection
	now   func() time.Time
}

// NewMemoryConnectionRepo はMemoryConnectionRepoを生成する。
func NewMemoryConnectionRepo() *MemoryConnectionRepo {
	return &MemoryConnectionRepo{
		conns: make(map[string]map[model.Platform]*model.PlatformConnection),
		now:   time.Now,
	}
}

// ListByUserID はユーザーの連携一覧をプラットフォーム順で返す。
func (r *MemoryConnectionRepo) ListByUserID(_ context.Context, userID string) ([]*model.PlatformConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPlatform := r.conns[userID]
	result := make([]*model.PlatformConnection, 0, len(byPlatform))
	for _, p := range model.AllPlatforms {
		if conn, ok := byPlatform[p]; ok {
			c := *conn
			result = append(result, &c)
		}
	}
	return result, nil
}

// FindByUserAndPlatform は連携を取得する。見つからない場合はnilを返す。
func (r *MemoryConnectionRepo) FindByUserAndPlatform(_ context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID][platform]
	if !ok {
		return nil, nil
	}
	c := *conn
	return &c, nil
}

// Upsert は連携を作成または更新する。
func (r *MemoryConnectionRepo) Upsert(_ context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byPlatform, ok := r.conns[conn.UserID]
	if !ok {
		byPlatform = make(map[model.Platform]*model.PlatformConnection)
		r.conns[conn.UserID] = byPlatform
	}

	stored := *conn
	if existing, ok := byPlatform[conn.Platform]; ok {
		stored.ID = existing.ID
	}
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.UpdatedAt = r.now()
	byPlatform[conn.Platform] = &stored

	c := stored
	return &c, nil
}

// Disconnect は連携を切断済みにする。
func (r *MemoryConnectionRepo) Disconnect(_ context.Context, userID string, platform model.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[userID][platform]
	if !ok {
		return ErrConnectionNotFound
	}
	conn.Connected = false
	conn.UpdatedAt = r.now()
	return nil
}
