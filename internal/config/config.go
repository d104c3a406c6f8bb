// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string

	// Database（空の場合はインメモリストアを使用する）
	DatabaseURL string

	// Upstream
	UpstreamTimeout       time.Duration
	UpstreamMaxSize       int64
	CodeforcesStatusCount int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral    int
	RateLimitUserLookup int

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel slog.Level

	// Client（CLIサブコマンドの接続先）
	APIURL string
}

// LoadDotEnv は.envファイルを読み込み、未設定の環境変数のみを補完する。
// pathsが空の場合はカレントディレクトリの.envを対象とする。
// ファイルが存在しない場合はエラーにしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 不正な値が設定されている場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	var invalid []string

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	if port, err := strconv.Atoi(cfg.ServerPort); err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, "SERVER_PORT")
	}
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.UpstreamMaxSize = getEnvInt64("UPSTREAM_MAX_SIZE", 10<<20)
	cfg.CodeforcesStatusCount = getEnvInt("CODEFORCES_STATUS_COUNT", 1000)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUserLookup = getEnvInt("RATE_LIMIT_USER_LOOKUP", 30)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")
	cfg.APIURL = strings.TrimRight(getEnvString("API_URL", "http://localhost:"+cfg.ServerPort), "/")

	if cfg.UpstreamTimeout <= 0 {
		invalid = append(invalid, "UPSTREAM_TIMEOUT")
	}
	if cfg.UpstreamMaxSize <= 0 {
		invalid = append(invalid, "UPSTREAM_MAX_SIZE")
	}
	if cfg.CodeforcesStatusCount <= 0 {
		invalid = append(invalid, "CODEFORCES_STATUS_COUNT")
	}
	if cfg.RateLimitGeneral <= 0 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL")
	}
	if cfg.RateLimitUserLookup <= 0 {
		invalid = append(invalid, "RATE_LIMIT_USER_LOOKUP")
	}

	level, err := ParseLogLevel(getEnvString("LOG_LEVEL", "info"))
	if err != nil {
		invalid = append(invalid, "LOG_LEVEL")
	}
	cfg.LogLevel = level

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return cfg, nil
}

// UseDatabase はPostgreSQLストアを使用するかを返す。
func (c *Config) UseDatabase() bool {
	return c.DatabaseURL != ""
}

// ParseLogLevel はログレベル名をslog.Levelに変換する。大文字小文字は区別しない。
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt は整数として解釈できない値の場合-1を返し、Loadの検証で弾く。
func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return -1
	}
	return d
}
