// Package client はContestHub APIのGoクライアントと、プラットフォームごとの
// 読み込み状態を保持するTrackerを提供する。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/contesthub/internal/model"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 10 << 20
)

// envelope はAPIレスポンス共通のJSON形式。
type envelope struct {
	Status  string          `json:"status"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Client はContestHub APIのクライアント。
// コンテスト一覧はフェイルオープン、ユーザー統計はフェイルクローズで扱う。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New はClientの新しいインスタンスを生成する。
// httpClientがnilの場合はタイムアウト付きの既定クライアントを使用する。
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetAllContests は全プラットフォームの開催予定コンテストを返す。
// 取得に失敗した場合はログに記録して空スライスを返す。
func (c *Client) GetAllContests(ctx context.Context) []model.Contest {
	return c.listContests(ctx, "/contests")
}

// GetPlatformContests は指定プラットフォームの開催予定コンテストを返す。
// 取得に失敗した場合はログに記録して空スライスを返す。
func (c *Client) GetPlatformContests(ctx context.Context, platform model.Platform) []model.Contest {
	return c.listContests(ctx, "/contests/"+platform.Slug())
}

func (c *Client) listContests(ctx context.Context, path string) []model.Contest {
	var contests []model.Contest
	if err := c.get(ctx, path, &contests); err != nil {
		c.logger.Warn("コンテスト一覧の取得に失敗しました",
			slog.String("path", path),
			slog.String("error_kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return []model.Contest{}
	}
	if contests == nil {
		contests = []model.Contest{}
	}
	return contests
}

// GetUserStats はプラットフォーム固有の形のユーザー統計を返す。
// エラーレスポンスはHTTPステータスから*model.Errorの分類に戻して返す。
func (c *Client) GetUserStats(ctx context.Context, platform model.Platform, handle string) (*model.UserStats, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, model.NewValidationError("username is required")
	}

	stats := &model.UserStats{Platform: platform}
	var out any
	switch platform {
	case model.PlatformCodeforces:
		stats.Codeforces = &model.CodeforcesUser{}
		out = stats.Codeforces
	case model.PlatformLeetCode:
		stats.LeetCode = &model.LeetCodeUser{}
		out = stats.LeetCode
	default:
		return nil, model.NewNotSupportedError(platform, "user statistics lookup")
	}

	if err := c.get(ctx, userPath(platform, handle), out); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetUserSummary は共通サブセットに正規化したユーザー統計を返す。
func (c *Client) GetUserSummary(ctx context.Context, platform model.Platform, handle string) (*model.StatsSummary, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, model.NewValidationError("username is required")
	}

	var summary model.StatsSummary
	if err := c.get(ctx, userPath(platform, handle)+"/summary", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// HealthCheck は/healthが200を返すかを確認する。
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func userPath(platform model.Platform, handle string) string {
	return "/users/" + platform.Slug() + "/" + url.PathEscape(strings.TrimSpace(handle))
}

// get はGETリクエストを送り、成功エンベロープのdataをoutにデコードする。
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewNetworkError("", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return model.NewNetworkError("", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return errorFromStatus(resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return &model.Error{Kind: model.KindUpstream, Message: "malformed API response", Err: err}
	}

	if resp.StatusCode != http.StatusOK || env.Status != "success" {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return errorFromStatus(resp.StatusCode, msg)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return &model.Error{Kind: model.KindUpstream, Message: "malformed API response data", Err: err}
	}
	return nil
}

// errorFromStatus はAPIのエラーステータスを*model.Errorの分類に戻す。
func errorFromStatus(code int, message string) error {
	var kind model.ErrorKind
	switch code {
	case http.StatusBadRequest:
		kind = model.KindValidation
	case http.StatusNotFound:
		kind = model.KindNotFound
	case http.StatusNotImplemented:
		kind = model.KindNotSupported
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		kind = model.KindNetwork
	default:
		kind = model.KindUpstream
	}
	return &model.Error{Kind: kind, Message: message, Err: &StatusError{Code: code}}
}

// StatusError はAPIが返した非200ステータスを表す。
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// StatusCode はエラーチェーンに含まれるAPIのHTTPステータスを返す。無ければ0。
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
