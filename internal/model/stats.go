package model

import (
	"fmt"
	"sort"
)

const (
	// RankUnratedCodeforces はCodeforcesのランク未設定時の既定値。
	RankUnratedCodeforces = "unrated"
	// RankUnrated は正規化サマリのランク未設定時の既定値。
	RankUnrated = "Unrated"
)

// ContestHistoryEntry はCodeforcesのレーティング変動履歴の1件を表す。
type ContestHistoryEntry struct {
	ContestID    int    `json:"contestId"`
	ContestName  string `json:"contestName"`
	Rank         int    `json:"rank"`
	OldRating    int    `json:"oldRating"`
	NewRating    int    `json:"newRating"`
	RatingChange int    `json:"ratingChange"`
	TimeSeconds  int64  `json:"timeSeconds"`
}

// NewContestHistoryEntry は履歴エントリを生成する。
// RatingChangeは常にnewRating - oldRatingから導出し、取得元の値は使わない。
func NewContestHistoryEntry(contestID int, contestName string, rank, oldRating, newRating int, timeSeconds int64) ContestHistoryEntry {
	return ContestHistoryEntry{
		ContestID:    contestID,
		ContestName:  contestName,
		Rank:         rank,
		OldRating:    oldRating,
		NewRating:    newRating,
		RatingChange: newRating - oldRating,
		TimeSeconds:  timeSeconds,
	}
}

// CodeforcesUser はCodeforcesユーザーの統計情報。
type CodeforcesUser struct {
	Handle                  string                `json:"handle"`
	Rating                  int                   `json:"rating"`
	MaxRating               int                   `json:"maxRating"`
	Rank                    string                `json:"rank"`
	MaxRank                 string                `json:"maxRank"`
	Contribution            int                   `json:"contribution"`
	RegistrationTimeSeconds int64                 `json:"registrationTimeSeconds"`
	LastOnlineTimeSeconds   int64                 `json:"lastOnlineTimeSeconds"`
	FriendOfCount           int                   `json:"friendOfCount"`
	TitlePhoto              string                `json:"titlePhoto,omitempty"`
	SubmissionsCount        int                   `json:"submissionsCount"`
	ContestHistory          []ContestHistoryEntry `json:"contestHistory"`
}

// LeetCodeUser はLeetCodeユーザーの統計情報。
// 解答数は難易度別バケット（All/Easy/Medium/Hard）から取り出したもの。
type LeetCodeUser struct {
	Username         string `json:"username"`
	Ranking          int    `json:"ranking"`
	Reputation       int    `json:"reputation"`
	StarRating       int    `json:"starRating"`
	TotalSolved      int    `json:"totalSolved"`
	TotalSubmissions int    `json:"totalSubmissions"`
	EasySolved       int    `json:"easySolved"`
	MediumSolved     int    `json:"mediumSolved"`
	HardSolved       int    `json:"hardSolved"`
}

// UserStats はプラットフォームごとに形の異なるユーザー統計のタグ付き結果。
// Platformに対応するフィールドだけがnon-nilになる。
type UserStats struct {
	Platform   Platform
	Codeforces *CodeforcesUser
	LeetCode   *LeetCodeUser
}

// Payload はAPIレスポンスの data に載せるプラットフォーム固有の値を返す。
func (s *UserStats) Payload() any {
	switch s.Platform {
	case PlatformCodeforces:
		return s.Codeforces
	case PlatformLeetCode:
		return s.LeetCode
	default:
		return nil
	}
}

// RatingPoint はレーティング推移グラフの1点。
type RatingPoint struct {
	ContestName string `json:"contestName,omitempty"`
	Rating      int    `json:"rating"`
	Date        string `json:"date"`
	Change      int    `json:"change"`
}

// StatsSummary はプラットフォーム共通のサブセットに正規化したユーザー統計。
type StatsSummary struct {
	Platform      Platform      `json:"platform"`
	Username      string        `json:"username"`
	Rating        int           `json:"rating"`
	Rank          string        `json:"rank"`
	Solved        int           `json:"solved"`
	TotalContests int           `json:"totalContests"`
	BestRank      *int          `json:"bestRank,omitempty"`
	RatingHistory []RatingPoint `json:"ratingHistory,omitempty"`
}

// Summary はタグ付き結果を共通サブセットに正規化する。
// Codeforcesの解答数は提出数による推定値であり、真の解答数ではない。
func (s *UserStats) Summary() (*StatsSummary, error) {
	switch s.Platform {
	case PlatformCodeforces:
		if s.Codeforces == nil {
			break
		}
		return codeforcesSummary(s.Codeforces), nil
	case PlatformLeetCode:
		if s.LeetCode == nil {
			break
		}
		return leetcodeSummary(s.LeetCode), nil
	}
	return nil, fmt.Errorf("user stats for %s has no payload", s.Platform)
}

func codeforcesSummary(u *CodeforcesUser) *StatsSummary {
	sum := &StatsSummary{
		Platform:      PlatformCodeforces,
		Username:      u.Handle,
		Rating:        u.Rating,
		Rank:          u.Rank,
		Solved:        u.SubmissionsCount,
		TotalContests: len(u.ContestHistory),
	}
	if sum.Rank == "" || sum.Rank == RankUnratedCodeforces {
		sum.Rank = RankUnrated
	}

	history := make([]ContestHistoryEntry, len(u.ContestHistory))
	copy(history, u.ContestHistory)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].TimeSeconds < history[j].TimeSeconds
	})

	for _, h := range history {
		sum.RatingHistory = append(sum.RatingHistory, RatingPoint{
			ContestName: h.ContestName,
			Rating:      h.NewRating,
			Date:        FormatTimestamp(h.TimeSeconds),
			Change:      h.RatingChange,
		})
		if h.Rank > 0 && (sum.BestRank == nil || h.Rank < *sum.BestRank) {
			best := h.Rank
			sum.BestRank = &best
		}
	}
	return sum
}

func leetcodeSummary(u *LeetCodeUser) *StatsSummary {
	sum := &StatsSummary{
		Platform: PlatformLeetCode,
		Username: u.Username,
		Rating:   u.StarRating,
		Rank:     RankUnrated,
		Solved:   u.TotalSolved,
	}
	if u.Ranking > 0 {
		sum.Rank = fmt.Sprintf("Rank %d", u.Ranking)
	}
	return sum
}
