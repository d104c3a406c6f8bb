package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/contesthub/internal/model"
)

// PostgresConnectionRepo はPostgreSQLを使用した連携リポジトリ。
type PostgresConnectionRepo struct {
	db *sql.DB
}

// NewPostgresConnectionRepo はPostgresConnectionRepoを生成する。
func NewPostgresConnectionRepo(db *sql.DB) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{db: db}
}

// platformOrderSQL はmodel.AllPlatformsと同じ並び順を表すORDER BY句。
const platformOrderSQL = `CASE platform
	WHEN 'Codeforces' THEN 0
	WHEN 'LeetCode' THEN 1
	WHEN 'CodeChef' THEN 2
	ELSE 3 END`

// ListByUserID はユーザーの連携一覧をプラットフォーム順で返す。
func (r *PostgresConnectionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, platform, username, connected, updated_at
		 FROM platform_connections WHERE user_id = $1
		 ORDER BY `+platformOrderSQL,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("連携一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	conns := make([]*model.PlatformConnection, 0, len(model.AllPlatforms))
	for rows.Next() {
		conn := &model.PlatformConnection{}
		if err := rows.Scan(&conn.ID, &conn.UserID, &conn.Platform, &conn.Username, &conn.Connected, &conn.UpdatedAt); err != nil {
			return nil, fmt.Errorf("連携行の読み取りに失敗しました: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("連携一覧の走査に失敗しました: %w", err)
	}
	return conns, nil
}

// FindByUserAndPlatform は連携を取得する。見つからない場合はnilを返す。
func (r *PostgresConnectionRepo) FindByUserAndPlatform(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	conn := &model.PlatformConnection{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, platform, username, connected, updated_at
		 FROM platform_connections WHERE user_id = $1 AND platform = $2`,
		userID, string(platform),
	).Scan(&conn.ID, &conn.UserID, &conn.Platform, &conn.Username, &conn.Connected, &conn.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("連携の取得に失敗しました: %w", err)
	}
	return conn, nil
}

// Upsert は (user_id, platform) の一意制約を使って連携を作成または更新する。
func (r *PostgresConnectionRepo) Upsert(ctx context.Context, conn *model.PlatformConnection) (*model.PlatformConnection, error) {
	id := conn.ID
	if id == "" {
		id = uuid.NewString()
	}

	saved := &model.PlatformConnection{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO platform_connections (id, user_id, platform, username, connected, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id, platform) DO UPDATE
		 SET username = EXCLUDED.username,
		     connected = EXCLUDED.connected,
		     updated_at = NOW()
		 RETURNING id, user_id, platform, username, connected, updated_at`,
		id, conn.UserID, string(conn.Platform), conn.Username, conn.Connected,
	).Scan(&saved.ID, &saved.UserID, &saved.Platform, &saved.Username, &saved.Connected, &saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("連携の保存に失敗しました: %w", err)
	}
	return saved, nil
}

// Disconnect は連携を切断済みにする。
func (r *PostgresConnectionRepo) Disconnect(ctx context.Context, userID string, platform model.Platform) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE platform_connections SET connected = FALSE, updated_at = NOW()
		 WHERE user_id = $1 AND platform = $2`,
		userID, string(platform),
	)
	if err != nil {
		return fmt.Errorf("連携の切断に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}
