package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tweetkiosk/internal/config"
	"github.com/hitoshi/tweetkiosk/internal/database"
	"github.com/hitoshi/tweetkiosk/internal/handle"
	"github.com/hitoshi/tweetkiosk/internal/handler"
	"github.com/hitoshi/tweetkiosk/internal/logger"
	"github.com/hitoshi/tweetkiosk/internal/media"
	"github.com/hitoshi/tweetkiosk/internal/metrics"
	"github.com/hitoshi/tweetkiosk/internal/middleware"
	"github.com/hitoshi/tweetkiosk/internal/repository"
	"github.com/hitoshi/tweetkiosk/internal/security"
	"github.com/hitoshi/tweetkiosk/internal/tweet"
	"github.com/hitoshi/tweetkiosk/internal/twitter"
	"github.com/hitoshi/tweetkiosk/internal/worker/cleanup"
	fetchpkg "github.com/hitoshi/tweetkiosk/internal/worker/fetch"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("use_mock_data", cfg.UseMockData),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanmock:
		return runCleanmock(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	handleRepo := repository.NewPostgresHandleRepo(db)
	tweetRepo := repository.NewPostgresTweetRepo(db)

	// 3. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 4. セキュリティコンポーネントの初期化
	mediaGuard := security.NewMediaGuard()
	sanitizer := security.NewTextSanitizer()

	// 5. ドメインサービスの初期化
	handleService := handle.NewService(handleRepo)
	tweetService := tweet.NewService(tweetRepo, collector)
	mediaService := media.NewService(tweetRepo, mediaGuard, cfg.MediaMaxSize)

	// オンデマンドリフレッシュはワーカーと同じフェッチ経路を同期実行する
	source := twitter.NewClient(
		&http.Client{Timeout: cfg.FetchTimeout},
		slog.Default(), cfg.RapidAPIKey, cfg.RapidAPIHost,
	)
	fetcher := fetchpkg.NewFetcher(
		tweetRepo, source, sanitizer, collector,
		slog.Default(), cfg.UseMockData, cfg.TweetsPerHandle,
	)
	scheduler := fetchpkg.NewScheduler(
		handleRepo, fetcher, collector, slog.Default(), cfg.FetchMaxConcurrent,
	)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitRefresh),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Collector:         collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker: db,
		Gatherer:      reg,

		TweetService:   tweetService,
		RefreshService: scheduler,
		MediaService:   mediaService,

		HandleService: handleService,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、フェッチスケジューラを起動する。
// メトリクスは専用のHTTPエンドポイントで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	handleRepo := repository.NewPostgresHandleRepo(db)
	tweetRepo := repository.NewPostgresTweetRepo(db)

	// 3. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 4. フェッチャーの初期化
	sanitizer := security.NewTextSanitizer()
	source := twitter.NewClient(
		&http.Client{Timeout: cfg.FetchTimeout},
		slog.Default(), cfg.RapidAPIKey, cfg.RapidAPIHost,
	)
	fetcher := fetchpkg.NewFetcher(
		tweetRepo, source, sanitizer, collector,
		slog.Default(), cfg.UseMockData, cfg.TweetsPerHandle,
	)

	// 5. スケジューラの初期化
	scheduler := fetchpkg.NewScheduler(
		handleRepo, fetcher, collector, slog.Default(), cfg.FetchMaxConcurrent,
	)

	// 6. メトリクスエンドポイントの起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(reg),
	}
	go func() {
		slog.Info("worker metrics endpoint starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics endpoint listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// フェッチスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RefreshInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics endpoint shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCleanmock はモックツイートの一括削除を実行する。
// モード切替後に残留したモックデータを取り除くためのワンショットコマンド。
func runCleanmock(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	tweetRepo := repository.NewPostgresTweetRepo(db)
	job := cleanup.NewJob(tweetRepo, slog.Default())

	deleted, err := job.Run(context.Background())
	if err != nil {
		return fmt.Errorf("mock cleanup failed: %w", err)
	}

	slog.Info("mock cleanup completed", slog.Int64("deleted_count", deleted))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
