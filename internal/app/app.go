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

	"github.com/hitoshi/cakeshop/internal/auth"
	"github.com/hitoshi/cakeshop/internal/cart"
	"github.com/hitoshi/cakeshop/internal/catalog"
	"github.com/hitoshi/cakeshop/internal/config"
	"github.com/hitoshi/cakeshop/internal/database"
	"github.com/hitoshi/cakeshop/internal/handler"
	"github.com/hitoshi/cakeshop/internal/logger"
	"github.com/hitoshi/cakeshop/internal/metrics"
	"github.com/hitoshi/cakeshop/internal/middleware"
	"github.com/hitoshi/cakeshop/internal/repository"
	"github.com/hitoshi/cakeshop/internal/security"
	"github.com/hitoshi/cakeshop/internal/storage"
	"github.com/hitoshi/cakeshop/internal/token"
	"github.com/prometheus/client_golang/prometheus"
)

// Init はアプリケーションの初期化を行う。
// .envを読み込んだ後、JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（LOG_LEVELを含むため、ログ初期化より前に行う）
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. ログの初期化
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
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
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
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
		slog.String("base_url", cfg.BaseURL),
		slog.String("blob_backend", cfg.BlobBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.StoreTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	cartRepo := repository.NewPostgresCartRepo(db)
	shopRepo := repository.NewPostgresShopRepo(db)
	cakeRepo := repository.NewPostgresCakeRepo(db)
	txm := repository.NewPostgresTxManager(db)

	// 3. 横断的なサービスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	tokens, err := token.NewService(token.Config{
		Secret: cfg.TokenSecret,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	uploader, closeUploader, err := newUploader(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create blob uploader: %w", err)
	}
	defer closeUploader()

	// 4. ドメインサービスの初期化
	accountService := auth.NewService(userRepo, txm, tokens, collector, auth.ServiceConfig{
		StoreTimeout: cfg.StoreTimeout,
	})
	catalogService := catalog.NewService(
		userRepo, shopRepo, cakeRepo, txm,
		uploader, security.NewTextSanitizer(), collector,
		catalog.ServiceConfig{StoreTimeout: cfg.StoreTimeout},
	)
	cartService := cart.NewService(
		cartRepo, userRepo, cakeRepo, txm, collector,
		cart.ServiceConfig{StoreTimeout: cfg.StoreTimeout},
	)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	var csrf *middleware.CSRFConfig
	if cfg.CSRFProtection {
		csrf = &middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		}
	}

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF:              csrf,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		HealthChecker:     db,

		AccountService: accountService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
			TokenTTL:     tokens.TTL(),
		},

		CatalogService: catalogService,
		CatalogConfig: handler.CatalogHandlerConfig{
			MaxUploadBytes: cfg.MaxUploadBytes,
		},

		CartService: cartService,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newUploader はBLOB_BACKENDに応じた画像アップローダーを生成する。
// 戻り値の関数で保持しているクライアントを解放する。
func newUploader(ctx context.Context, cfg *config.Config) (storage.Uploader, func(), error) {
	switch cfg.BlobBackend {
	case config.BlobBackendGCS:
		u, err := storage.NewGCSUploader(ctx, storage.GCSConfig{
			Bucket:          cfg.BlobBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			PublicBaseURL:   cfg.BlobPublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return u, func() {
			if err := u.Close(); err != nil {
				slog.Warn("failed to close gcs client", slog.String("error", err.Error()))
			}
		}, nil
	default:
		u, err := storage.NewMinIOUploader(ctx, storage.MinIOConfig{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			UseSSL:        cfg.MinIOUseSSL,
			Bucket:        cfg.BlobBucket,
			PublicBaseURL: cfg.BlobPublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return u, func() {}, nil
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
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
