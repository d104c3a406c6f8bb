// Package codechef はCodeChefのコンテスト一覧APIのアダプタを提供する。
// ユーザー統計はトークン付きの認証APIが必要なため未対応とし、NotSupportedErrorを返す。
package codechef

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/upstream"
)

const (
	// defaultEndpoint はCodeChefのコンテスト一覧エンドポイント。
	defaultEndpoint = "https://www.codechef.com/api/list/contests/all"
	// contestURLBase はコンテストページURLの接頭辞。
	contestURLBase = "https://www.codechef.com/"

	// legacyLayout は *_iso フィールドが無い場合の日時書式（IST）。
	legacyLayout = "02 Jan 2006 15:04:05"
)

// ist はCodeChefの非ISO日時が表すタイムゾーン（UTC+5:30）。
var ist = time.FixedZone("IST", 5*60*60+30*60)

// Client はCodeChef APIのアダプタ。
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

// Platform はPlatformCodeChefを返す。
func (c *Client) Platform() model.Platform {
	return model.PlatformCodeChef
}

type apiContest struct {
	ContestCode         string `json:"contest_code"`
	ContestName         string `json:"contest_name"`
	ContestStartDate    string `json:"contest_start_date"`
	ContestEndDate      string `json:"contest_end_date"`
	ContestStartDateISO string `json:"contest_start_date_iso"`
	ContestEndDateISO   string `json:"contest_end_date_iso"`
}

type apiListResponse struct {
	Status         string        `json:"status"`
	Message        string        `json:"message"`
	FutureContests []*apiContest `json:"future_contests"`
}

// FetchContests は開催予定コンテストを返す。失敗時はログに記録して空スライスを返す。
func (c *Client) FetchContests(ctx context.Context) []model.Contest {
	contests, err := c.ListContests(ctx)
	if err != nil {
		c.up.Logger().Warn("CodeChefのコンテスト一覧取得に失敗しました",
			slog.String("platform", c.Platform().Slug()),
			slog.String("error_kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return []model.Contest{}
	}
	return contests
}

// ListContests は future_contests を正規化して返す。
// 開催時間は開始・終了時刻の差から導出し、duration系のフィールドは参照しない。
// 日時を解釈できないコンテストと、現在時刻より後に開始しないコンテストは除外する。
func (c *Client) ListContests(ctx context.Context) ([]model.Contest, error) {
	now := c.now()

	resp, err := c.up.Get(ctx, c.endpoint)
	if err != nil {
		return nil, err
	}

	var body apiListResponse
	if err := c.up.Decode(resp, &body); err != nil {
		if !resp.OK() {
			return nil, model.NewUpstreamError(model.PlatformCodeChef,
				fmt.Sprintf("contest list returned HTTP status %d", resp.StatusCode))
		}
		return nil, err
	}
	if body.FutureContests == nil {
		msg := "contest list response has no future_contests"
		if body.Message != "" {
			msg += ": " + body.Message
		}
		return nil, c.up.Fail(model.NewUpstreamError(model.PlatformCodeChef, msg))
	}

	contests := make([]model.Contest, 0, len(body.FutureContests))
	for _, rc := range body.FutureContests {
		if rc == nil {
			continue
		}
		start, err := parseTime(rc.ContestStartDateISO, rc.ContestStartDate)
		if err != nil {
			c.up.Logger().Warn("CodeChefコンテストの開始日時を解釈できません",
				slog.String("contest_code", rc.ContestCode),
				slog.String("error", err.Error()),
			)
			continue
		}
		end, err := parseTime(rc.ContestEndDateISO, rc.ContestEndDate)
		if err != nil {
			c.up.Logger().Warn("CodeChefコンテストの終了日時を解釈できません",
				slog.String("contest_code", rc.ContestCode),
				slog.String("error", err.Error()),
			)
			continue
		}

		contest := model.NewContest(
			model.PlatformCodeChef,
			c.sanitizer.PlainText(rc.ContestName),
			start.Unix(),
			DurationSeconds(start, end),
			contestURLBase+rc.ContestCode,
		)
		contest.Code = rc.ContestCode
		contest.EndTime = model.FormatTimestamp(end.Unix())
		if !contest.IsUpcoming(now) {
			continue
		}
		contests = append(contests, contest)
	}
	return contests, nil
}

// FetchUser はCodeChefのユーザー統計に対応していないため、ネットワークに出ずに
// NotSupportedErrorを返す。
func (c *Client) FetchUser(ctx context.Context, handle string) (*model.UserStats, error) {
	return nil, c.up.Fail(model.NewNotSupportedError(model.PlatformCodeChef, "user statistics lookup"))
}

// DurationSeconds は開始・終了時刻の差を秒で返す。終了が開始より前の場合は0。
func DurationSeconds(start, end time.Time) int64 {
	d := int64(end.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// parseTime はISO形式を優先し、無ければ旧形式（IST）で日時を解釈する。
func parseTime(iso, legacy string) (time.Time, error) {
	if iso = strings.TrimSpace(iso); iso != "" {
		if t, err := time.Parse(time.RFC3339, iso); err == nil {
			return t, nil
		}
	}
	legacy = strings.Join(strings.Fields(legacy), " ")
	if legacy == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(time.RFC3339, legacy); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(legacyLayout, legacy, ist)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q: %w", legacy, err)
	}
	return t, nil
}
