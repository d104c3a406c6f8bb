// Package leetcode はLeetCode GraphQL APIのアダプタを提供する。
package leetcode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/upstream"
)

const (
	// defaultEndpoint はLeetCode GraphQLのエンドポイント。
	defaultEndpoint = "https://leetcode.com/graphql"
	// contestURLBase はコンテストページURLの接頭辞。
	contestURLBase = "https://leetcode.com/contest/"
)

const contestListQuery = `
query getContestList {
  allContests {
    title
    startTime
    duration
    titleSlug
  }
}`

const userProfileQuery = `
query getUserProfile($username: String!) {
  matchedUser(username: $username) {
    username
    submitStats: submitStatsGlobal {
      acSubmissionNum {
        difficulty
        count
        submissions
      }
    }
    profile {
      reputation
      ranking
      starRating
    }
  }
}`

// difficultyBuckets は acSubmissionNum の固定位置の契約。
// インデックス0=All、1=Easy、2=Medium、3=Hard。
var difficultyBuckets = []string{"All", "Easy", "Medium", "Hard"}

// Client はLeetCode GraphQL APIのアダプタ。
type Client struct {
	up        *upstream.Client
	sanitizer upstream.TextSanitizer
	endpoint  string           // テスト用にエンドポイントを差し替え可能
	now       func() time.Time // テスト用に現在時刻を差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(up *upstream.Client, sanitizer upstream.TextSanitizer) *Client {
	if sanitizer == nil {
		sanitizer = upstream.PassthroughSanitizer{}
	}
	return &Client{
		up:        up,
		sanitizer: sanitizer,
		endpoint:  defaultEndpoint,
		now:       time.Now,
	}
}

// Platform はPlatformLeetCodeを返す。
func (c *Client) Platform() model.Platform {
	return model.PlatformLeetCode
}

// graphQLRequest はGraphQLのPOSTボディ。
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type apiContest struct {
	Title     string `json:"title"`
	StartTime int64  `json:"startTime"`
	Duration  int64  `json:"duration"`
	TitleSlug string `json:"titleSlug"`
}

type apiBucket struct {
	Difficulty  string `json:"difficulty"`
	Count       int    `json:"count"`
	Submissions int    `json:"submissions"`
}

type apiMatchedUser struct {
	Username    string `json:"username"`
	SubmitStats *struct {
		ACSubmissionNum []apiBucket `json:"acSubmissionNum"`
	} `json:"submitStats"`
	Profile *struct {
		Reputation int     `json:"reputation"`
		Ranking    int     `json:"ranking"`
		StarRating float64 `json:"starRating"`
	} `json:"profile"`
}

// FetchContests は現在時刻より後に開始するコンテストを返す。
// 失敗時はログに記録して空スライスを返す。
func (c *Client) FetchContests(ctx context.Context) []model.Contest {
	contests, err := c.ListContests(ctx)
	if err != nil {
		c.up.Logger().Warn("LeetCodeのコンテスト一覧取得に失敗しました",
			slog.String("platform", c.Platform().Slug()),
			slog.String("error_kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return []model.Contest{}
	}
	return contests
}

// ListContests は allContests クエリを発行し、開始時刻が現在より厳密に後のものだけを返す。
func (c *Client) ListContests(ctx context.Context) ([]model.Contest, error) {
	now := c.now()

	var data struct {
		AllContests []apiContest `json:"allContests"`
	}
	if err := c.query(ctx, graphQLRequest{Query: contestListQuery}, &data); err != nil {
		return nil, err
	}

	contests := make([]model.Contest, 0, len(data.AllContests))
	for _, rc := range data.AllContests {
		contest := model.NewContest(
			model.PlatformLeetCode,
			c.sanitizer.PlainText(rc.Title),
			rc.StartTime,
			rc.Duration,
			contestURLBase+rc.TitleSlug,
		)
		if !contest.IsUpcoming(now) {
			continue
		}
		contests = append(contests, contest)
	}
	return contests, nil
}

// FetchUser は matchedUser クエリでプロフィールと難易度別の解答数を取得する。
// matchedUserがnullの場合はNotFoundErrorを返す。
func (c *Client) FetchUser(ctx context.Context, username string) (*model.UserStats, error) {
	req := graphQLRequest{
		Query:     userProfileQuery,
		Variables: map[string]any{"username": username},
	}

	var data struct {
		MatchedUser *apiMatchedUser `json:"matchedUser"`
	}
	if err := c.query(ctx, req, &data); err != nil {
		return nil, err
	}
	if data.MatchedUser == nil {
		return nil, c.up.Fail(model.NewNotFoundError(model.PlatformLeetCode, username))
	}
	mu := data.MatchedUser

	user := &model.LeetCodeUser{Username: mu.Username}
	if user.Username == "" {
		user.Username = username
	}
	if mu.Profile != nil {
		user.Ranking = mu.Profile.Ranking
		user.Reputation = mu.Profile.Reputation
		user.StarRating = int(mu.Profile.StarRating)
	}

	var buckets []apiBucket
	if mu.SubmitStats != nil {
		buckets = mu.SubmitStats.ACSubmissionNum
	}
	if err := checkBuckets(buckets); err != nil {
		return nil, c.up.Fail(model.NewUpstreamError(model.PlatformLeetCode, err.Error()))
	}
	user.TotalSolved = buckets[0].Count
	user.TotalSubmissions = buckets[0].Submissions
	user.EasySolved = buckets[1].Count
	user.MediumSolved = buckets[2].Count
	user.HardSolved = buckets[3].Count

	return &model.UserStats{Platform: model.PlatformLeetCode, LeetCode: user}, nil
}

// checkBuckets は難易度バケットの件数と並び順が固定契約どおりかを検証する。
// 難易度ラベルが空の場合は位置のみで判断する。
func checkBuckets(buckets []apiBucket) error {
	if len(buckets) != len(difficultyBuckets) {
		return fmt.Errorf("unexpected submission bucket count: got %d, want %d", len(buckets), len(difficultyBuckets))
	}
	for i, want := range difficultyBuckets {
		got := buckets[i].Difficulty
		if got != "" && !strings.EqualFold(got, want) {
			return fmt.Errorf("unexpected submission bucket at index %d: got %q, want %q", i, got, want)
		}
	}
	return nil
}

// query はGraphQLリクエストを送信し、dataフィールドをoutにデコードする。
// dataがnullでerrorsがある場合はUpstreamErrorを返す。
func (c *Client) query(ctx context.Context, req graphQLRequest, out any) error {
	resp, err := c.up.PostJSON(ctx, c.endpoint, req)
	if err != nil {
		return err
	}

	var gr graphQLResponse
	if err := c.up.Decode(resp, &gr); err != nil {
		if !resp.OK() {
			return model.NewUpstreamError(model.PlatformLeetCode,
				fmt.Sprintf("graphql returned HTTP status %d", resp.StatusCode))
		}
		return err
	}

	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		msg := fmt.Sprintf("graphql returned no data (HTTP %d)", resp.StatusCode)
		if len(gr.Errors) > 0 {
			msg = "graphql error: " + gr.Errors[0].Message
		}
		return c.up.Fail(model.NewUpstreamError(model.PlatformLeetCode, msg))
	}

	if err := json.Unmarshal(gr.Data, out); err != nil {
		return c.up.Fail(&model.Error{
			Kind:     model.KindUpstream,
			Platform: model.PlatformLeetCode,
			Message:  "graphql returned an unexpected data shape",
			Err:      err,
		})
	}
	return nil
}
