package model

import (
	"fmt"
	"time"
)

// Contest は正規化済みの開催予定コンテストを表す。
// 全プラットフォーム共通のスキーマで、JSONのフィールド名はダッシュボードとの互換を保つ。
type Contest struct {
	Platform        Platform `json:"platform"`
	Name            string   `json:"name"`
	StartTimeUnix   int64    `json:"startTimeUnix"`
	StartTime       string   `json:"startTime"`
	DurationSeconds int64    `json:"durationSeconds"`
	Duration        string   `json:"duration"`
	URL             string   `json:"url"`

	// CodeChefのみ
	Code    string `json:"code,omitempty"`
	EndTime string `json:"endTime,omitempty"`
}

// NewContest は開始時刻と開催秒数から派生フィールドを埋めたContestを生成する。
func NewContest(platform Platform, name string, startUnix, durationSeconds int64, url string) Contest {
	return Contest{
		Platform:        platform,
		Name:            name,
		StartTimeUnix:   startUnix,
		StartTime:       FormatTimestamp(startUnix),
		DurationSeconds: durationSeconds,
		Duration:        FormatDuration(durationSeconds),
		URL:             url,
	}
}

// IsUpcoming はコンテストがnowより厳密に後に開始するかを返す。
func (c Contest) IsUpcoming(now time.Time) bool {
	return c.StartTimeUnix > now.Unix()
}

// FormatTimestamp はUNIX秒をミリ秒精度のISO-8601(UTC)文字列に変換する。
func FormatTimestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02T15:04:05.000Z")
}

// FormatDuration は秒数を "X hours Y minutes" 形式に変換する。
// 時間・分ともに整数除算（切り捨て）で、端数の秒は表示しない。
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d hours %d minutes", seconds/3600, (seconds%3600)/60)
}
