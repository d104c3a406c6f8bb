// Package upstream は外部プラットフォームAPIを呼び出す共通HTTPトランスポートを提供する。
// タイムアウト、レスポンスサイズ上限、トランスポート失敗のNetworkErrorへの変換、
// メトリクス記録をアダプタ間で共有する。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/contesthub/internal/model"
)

const (
	// DefaultTimeout は1回の外部呼び出しの既定タイムアウト。
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodySize はレスポンスボディの既定上限（10MiB）。
	DefaultMaxBodySize int64 = 10 << 20

	userAgent = "ContestHub/1.0 (+https://github.com/hitoshi/contesthub)"
)

// Recorder は外部呼び出しのメトリクスを記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordUpstreamRequest(platform string, statusCode int, duration time.Duration)
	RecordUpstreamError(platform string, kind string)
}

// URLValidator は送信前に宛先URLを検証するインターフェース。
// security.OutboundGuardが実装する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

type nopRecorder struct{}

func (nopRecorder) RecordUpstreamRequest(string, int, time.Duration) {}
func (nopRecorder) RecordUpstreamError(string, string)                {}

// Options はClientの任意設定。
type Options struct {
	Timeout     time.Duration
	MaxBodySize int64
	Recorder    Recorder
	Validator   URLValidator // nilの場合は検証しない
}

// Client は1つのプラットフォーム向けのHTTPクライアント。
// リトライは行わない（1呼び出し1試行）。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	platform    model.Platform
	timeout     time.Duration
	maxBodySize int64
	recorder    Recorder
	validator   URLValidator
}

// NewClient はClientの新しいインスタンスを生成する。
// 0値のオプションは既定値で補完する。
func NewClient(httpClient *http.Client, logger *slog.Logger, platform model.Platform, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		platform:    platform,
		timeout:     opts.Timeout,
		maxBodySize: opts.MaxBodySize,
		recorder:    opts.Recorder,
		validator:   opts.Validator,
	}
}

// Platform はこのクライアントの呼び出し先プラットフォームを返す。
func (c *Client) Platform() model.Platform {
	return c.platform
}

// Logger はクライアントのロガーを返す。
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Response は外部APIの生レスポンス。
// 非200でもボディを保持する（Codeforcesは400でもJSONで失敗理由を返すため）。
type Response struct {
	StatusCode int
	Body       []byte
}

// OK はHTTPステータスが200かを返す。
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Get はGETリクエストを送信する。
// トランスポート失敗（DNS/接続/タイムアウト/読み取り失敗）はNetworkErrorを返す。
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req)
}

// PostJSON はJSONボディのPOSTリクエストを送信する。
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("リクエストJSONのエンコードに失敗しました: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)

	if c.validator != nil {
		if err := c.validator.ValidateURL(req.URL.String()); err != nil {
			c.logger.Error("外部APIの宛先検証に失敗しました",
				slog.String("platform", c.platform.Slug()),
				slog.String("url", req.URL.Redacted()),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("宛先URLが許可されていません: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("外部APIの呼び出しに失敗しました",
			slog.String("platform", c.platform.Slug()),
			slog.String("url", req.URL.Redacted()),
			slog.Bool("timeout", model.IsTimeout(err)),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordUpstreamError(c.platform.Slug(), string(model.KindNetwork))
		return nil, model.NewNetworkError(c.platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	duration := time.Since(start)
	c.recorder.RecordUpstreamRequest(c.platform.Slug(), resp.StatusCode, duration)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("platform", c.platform.Slug()),
			slog.String("url", req.URL.Redacted()),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordUpstreamError(c.platform.Slug(), string(model.KindNetwork))
		return nil, model.NewNetworkError(c.platform, err)
	}

	c.logger.Debug("外部APIを呼び出しました",
		slog.String("platform", c.platform.Slug()),
		slog.String("url", req.URL.Redacted()),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// Decode はレスポンスボディをJSONとしてoutにデコードする。
// 不正なペイロードはUpstreamErrorを返す。
func (c *Client) Decode(resp *Response, out any) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		c.logger.Error("外部APIのレスポンスのパースに失敗しました",
			slog.String("platform", c.platform.Slug()),
			slog.Int("http_status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordUpstreamError(c.platform.Slug(), string(model.KindUpstream))
		return &model.Error{
			Kind:     model.KindUpstream,
			Platform: c.platform,
			Message:  "malformed response payload",
			Err:      err,
		}
	}
	return nil
}

// Fail は分類済みエラーのメトリクスを記録してそのまま返す。
func (c *Client) Fail(err *model.Error) error {
	c.recorder.RecordUpstreamError(c.platform.Slug(), string(err.Kind))
	return err
}
