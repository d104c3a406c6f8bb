// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/contesthub/internal/codechef"
	"github.com/hitoshi/contesthub/internal/codeforces"
	"github.com/hitoshi/contesthub/internal/config"
	"github.com/hitoshi/contesthub/internal/contest"
	"github.com/hitoshi/contesthub/internal/database"
	"github.com/hitoshi/contesthub/internal/handler"
	"github.com/hitoshi/contesthub/internal/leetcode"
	"github.com/hitoshi/contesthub/internal/logger"
	"github.com/hitoshi/contesthub/internal/metrics"
	"github.com/hitoshi/contesthub/internal/middleware"
	"github.com/hitoshi/contesthub/internal/model"
	"github.com/hitoshi/contesthub/internal/repository"
	"github.com/hitoshi/contesthub/internal/security"
	"github.com/hitoshi/contesthub/internal/stats"
	"github.com/hitoshi/contesthub/internal/upstream"
)

const (
	shutdownTimeout = 30 * time.Second
	dbPingTimeout   = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envを読み込み、環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを再構成する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。logwにはログ、outにはCLIの表示を出力する。
func Run(logw, out io.Writer, args []string) error {
	cmd := ParseCommand(args)

	cfg, err := Init(logw)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandHealthcheck:
		return runHealthcheck(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, commandArgs(args))
	case CommandContests:
		return runContests(ctx, cfg, out, commandArgs(args))
	case CommandStats:
		return runStats(ctx, cfg, out, commandArgs(args))
	default:
		slog.Info("starting application",
			slog.String("command", string(cmd)),
			slog.String("port", cfg.ServerPort),
			slog.String("base_url", cfg.BaseURL),
		)
		return runServe(ctx, cfg)
	}
}

// server はワイヤリング済みのHTTPハンドラーと後始末をまとめたもの。
type server struct {
	handler http.Handler
	closers []func()
}

func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newServer は設定から全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// DATABASE_URLが未設定の場合はインメモリの連携ストアを使用する。
func newServer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*server, error) {
	s := &server{}

	// 1. 連携ストアの初期化
	var connections repository.ConnectionRepository
	var pinger handler.Pinger
	if cfg.UseDatabase() {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.closers = append(s.closers, func() { _ = db.Close() })

		if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		connections = repository.NewPostgresConnectionRepo(db)
		pinger = db
	} else {
		log.Warn("DATABASE_URL is not set; platform connections are kept in memory")
		connections = repository.NewMemoryConnectionRepo()
	}

	// 2. メトリクスの初期化
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. 外部呼び出しのセキュリティ設定
	guard := security.NewOutboundGuard()
	httpClient := guard.NewSafeClient(cfg.UpstreamTimeout)
	sanitizer := security.NewTextSanitizer()

	newUpstream := func(p model.Platform) *upstream.Client {
		return upstream.NewClient(httpClient, log, p, upstream.Options{
			Timeout:     cfg.UpstreamTimeout,
			MaxBodySize: cfg.UpstreamMaxSize,
			Recorder:    collector,
			Validator:   guard,
		})
	}

	// 4. プラットフォームアダプタ
	cf := codeforces.NewClient(newUpstream(model.PlatformCodeforces), sanitizer, cfg.CodeforcesStatusCount)
	lc := leetcode.NewClient(newUpstream(model.PlatformLeetCode), sanitizer)
	cc := codechef.NewClient(newUpstream(model.PlatformCodeChef), sanitizer)

	// 5. ドメインサービス
	aggregator := contest.NewAggregator(log, collector, cf, lc, cc)
	resolver := stats.NewResolver(log, collector, connections, cf, lc, cc)

	// 6. ルーターの構築
	limiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitUserLookup),
	)
	s.closers = append(s.closers, limiter.Stop)

	deps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		StatusRecorder:    collector,
		Contests:          aggregator,
		Stats:             resolver,
		Connections:       connections,
		DB:                pinger,
		MetricsHandler:    metrics.Handler(reg),
	}
	s.handler = handler.NewRouter(deps)

	return s, nil
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	s, err := newServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// argsの先頭でup/downを指定する（省略時はup）。
func runMigrate(cfg *config.Config, args []string) error {
	if !cfg.UseDatabase() {
		return fmt.Errorf("migration failed: DATABASE_URL is not set")
	}

	var raw string
	if len(args) > 0 {
		raw = args[0]
	}
	dir, err := database.ParseDirection(raw)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("running database migrations",
		slog.String("direction", string(dir)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL, dir)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
