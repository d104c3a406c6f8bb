package model

import "time"

// PlatformConnection はローカルユーザーと各プラットフォームのユーザー名の対応を表す。
// 認証基盤（外部）が払い出したユーザーIDをキーに保存される。
type PlatformConnection struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Platform  Platform  `json:"platform"`
	Username  string    `json:"username"`
	Connected bool      `json:"connected"`
	UpdatedAt time.Time `json:"updatedAt"`
}
