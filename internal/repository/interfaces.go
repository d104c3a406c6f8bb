// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/contesthub/internal/model"
)

// ErrConnectionNotFound は対象の連携が存在しない場合のエラー。
var ErrConnectionNotFound = errors.New("platform connection not found")

// ConnectionRepository はプラットフォーム連携の永続化インターフェース。
// ユーザーIDとプラットフォームの組で一意となる。
type ConnectionRepository interface {
	// ListByUserID はユーザーの連携一覧をmodel.AllPlatformsの順で返す。
	// 切断済みの連携も含む。
	ListByUserID(ctx context.Context, userID string) ([]*model.PlatformConnection, error)

	// FindByUserAndPlatform はユーザーIDとプラットフォームで連携を取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndPlatform(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error)

	// Upsert は連携を作成または更新し、保存後の値を返す。
	// 既存の連携がある場合はIDを維持したままユーザー名と接続状態を上書きする。
	Upsert(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error)

	// Disconnect は連携を切断済みにする。存在しない場合はErrConnectionNotFoundを返す。
	Disconnect(ctx context.Context, userID string, platform model.Platform) error
}
