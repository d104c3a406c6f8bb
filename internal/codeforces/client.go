// Package codeforces はCodeforces APIのアダプタを提供する。
// contest.list から開催予定コンテストを、user.info / user.rating / user.status から
// ユーザー統計を取得し、共通スキーマに正規化する。
package codeforces

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/upstream"
)

const (
	// defaultEndpoint はCodeforces APIのベースURL。
	defaultEndpoint = "https://codeforces.com/api"
	// contestURLBase はコンテストページURLの接頭辞。
	contestURLBase = "https://codeforces.com/contests/"
	// DefaultStatusCount は提出数推定のために user.status で取得する最大件数。
	DefaultStatusCount = 1000

	phaseBefore = "BEFORE"
	statusOK    = "OK"
)

// Client はCodeforces APIのアダプタ。
type Client struct {
	up          *upstream.Client
	sanitizer   upstream.TextSanitizer
	statusCount int
	endpoint    string           // テスト用にエンドポイントを差し替え可能
	now         func() time.Time // テスト用に現在時刻を差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// statusCountが0以下の場合はDefaultStatusCountを使用する。
func NewClient(up *upstream.Client, sanitizer upstream.TextSanitizer, statusCount int) *Client {
	if sanitizer == nil {
		sanitizer = upstream.PassthroughSanitizer{}
	}
	if statusCount <= 0 {
		statusCount = DefaultStatusCount
	}
	return &Client{
		up:          up,
		sanitizer:   sanitizer,
		statusCount: statusCount,
		endpoint:    defaultEndpoint,
		now:         time.Now,
	}
}

// Platform はPlatformCodeforcesを返す。
func (c *Client) Platform() model.Platform {
	return model.PlatformCodeforces
}

// apiEnvelope はCodeforces API共通のレスポンス形式。
// statusが"OK"以外の場合、commentに失敗理由が入る。
type apiEnvelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

type apiContest struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Phase            string `json:"phase"`
	DurationSeconds  int64  `json:"durationSeconds"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
}

type apiUser struct {
	Handle                  string `json:"handle"`
	Rating                  int    `json:"rating"`
	MaxRating               int    `json:"maxRating"`
	Rank                    string `json:"rank"`
	MaxRank                 string `json:"maxRank"`
	Contribution            int    `json:"contribution"`
	RegistrationTimeSeconds int64  `json:"registrationTimeSeconds"`
	LastOnlineTimeSeconds   int64  `json:"lastOnlineTimeSeconds"`
	FriendOfCount           int    `json:"friendOfCount"`
	TitlePhoto              string `json:"titlePhoto"`
}

// apiRatingChange は user.rating の1件。ratingChangeに相当するフィールドは存在しないが、
// 存在したとしても参照せずnewRating - oldRatingから導出する。
type apiRatingChange struct {
	ContestID               int    `json:"contestId"`
	ContestName             string `json:"contestName"`
	Rank                    int    `json:"rank"`
	RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
	OldRating               int    `json:"oldRating"`
	NewRating               int    `json:"newRating"`
}

// FetchContests は開催前かつ現在時刻より後に開始するコンテストを返す。
// 失敗時はログに記録して空スライスを返す。
func (c *Client) FetchContests(ctx context.Context) []model.Contest {
	contests, err := c.ListContests(ctx)
	if err != nil {
		c.up.Logger().Warn("Codeforcesのコンテスト一覧取得に失敗しました",
			slog.String("platform", c.Platform().Slug()),
			slog.String("error_kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return []model.Contest{}
	}
	return contests
}

// ListContests は contest.list を呼び出し、phase=BEFORE かつ現在時刻より後に開始する
// コンテストを返す。statusがOK以外の場合はUpstreamError、到達不能の場合はNetworkErrorを返す。
func (c *Client) ListContests(ctx context.Context) ([]model.Contest, error) {
	now := c.now()

	var raw []apiContest
	if err := c.call(ctx, "contest.list", nil, "", &raw); err != nil {
		return nil, err
	}

	contests := make([]model.Contest, 0, len(raw))
	for _, rc := range raw {
		if rc.Phase != phaseBefore {
			continue
		}
		contest := model.NewContest(
			model.PlatformCodeforces,
			c.sanitizer.PlainText(rc.Name),
			rc.StartTimeSeconds,
			rc.DurationSeconds,
			contestURLBase+strconv.Itoa(rc.ID),
		)
		if !contest.IsUpcoming(now) {
			continue
		}
		contests = append(contests, contest)
	}
	return contests, nil
}

// FetchUser はユーザー基本情報、レーティング履歴、提出状況の3呼び出しで統計を組み立てる。
// submissionsCount は直近statusCount件までの提出数であり、解答数の近似に過ぎない。
func (c *Client) FetchUser(ctx context.Context, handle string) (*model.UserStats, error) {
	var users []apiUser
	if err := c.call(ctx, "user.info", url.Values{"handles": {handle}}, handle, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, c.up.Fail(model.NewNotFoundError(model.PlatformCodeforces, handle))
	}
	u := users[0]

	var ratings []apiRatingChange
	if err := c.call(ctx, "user.rating", url.Values{"handle": {handle}}, handle, &ratings); err != nil {
		return nil, err
	}

	var submissions []json.RawMessage
	statusQuery := url.Values{
		"handle": {handle},
		"from":   {"1"},
		"count":  {strconv.Itoa(c.statusCount)},
	}
	if err := c.call(ctx, "user.status", statusQuery, handle, &submissions); err != nil {
		return nil, err
	}

	user := &model.CodeforcesUser{
		Handle:                  u.Handle,
		Rating:                  u.Rating,
		MaxRating:               u.MaxRating,
		Rank:                    defaultRank(u.Rank),
		MaxRank:                 defaultRank(u.MaxRank),
		Contribution:            u.Contribution,
		RegistrationTimeSeconds: u.RegistrationTimeSeconds,
		LastOnlineTimeSeconds:   u.LastOnlineTimeSeconds,
		FriendOfCount:           u.FriendOfCount,
		TitlePhoto:              u.TitlePhoto,
		SubmissionsCount:        len(submissions),
		ContestHistory:          make([]model.ContestHistoryEntry, 0, len(ratings)),
	}
	if user.Handle == "" {
		user.Handle = handle
	}
	for _, r := range ratings {
		user.ContestHistory = append(user.ContestHistory, model.NewContestHistoryEntry(
			r.ContestID,
			c.sanitizer.PlainText(r.ContestName),
			r.Rank,
			r.OldRating,
			r.NewRating,
			r.RatingUpdateTimeSeconds,
		))
	}

	return &model.UserStats{Platform: model.PlatformCodeforces, Codeforces: user}, nil
}

// call はAPIメソッドを呼び出し、status=OKのresultをoutにデコードする。
// handleが指定されている場合、「not found」を示すcommentはNotFoundErrorに変換する。
func (c *Client) call(ctx context.Context, method string, query url.Values, handle string, out any) error {
	reqURL := c.endpoint + "/" + method
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	resp, err := c.up.Get(ctx, reqURL)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := c.up.Decode(resp, &env); err != nil {
		// Decodeがメトリクスを記録済みのため、ここではFailを経由しない
		if !resp.OK() {
			return model.NewUpstreamError(model.PlatformCodeforces,
				fmt.Sprintf("%s returned HTTP status %d", method, resp.StatusCode))
		}
		return err
	}

	if env.Status != statusOK {
		if handle != "" && isNotFoundComment(env.Comment) {
			return c.up.Fail(model.NewNotFoundError(model.PlatformCodeforces, handle))
		}
		comment := env.Comment
		if comment == "" {
			comment = fmt.Sprintf("status %q (HTTP %d)", env.Status, resp.StatusCode)
		}
		return c.up.Fail(model.NewUpstreamError(model.PlatformCodeforces,
			fmt.Sprintf("%s failed: %s", method, comment)))
	}

	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return c.up.Fail(&model.Error{
			Kind:     model.KindUpstream,
			Platform: model.PlatformCodeforces,
			Message:  fmt.Sprintf("%s returned an unexpected result shape", method),
			Err:      err,
		})
	}
	return nil
}

// isNotFoundComment はCodeforcesの「handles: User with handle X not found」形式を判定する。
func isNotFoundComment(comment string) bool {
	lower := strings.ToLower(comment)
	return strings.Contains(lower, "not found")
}

func defaultRank(rank string) string {
	if rank == "" {
		return model.RankUnratedCodeforces
	}
	return rank
}
