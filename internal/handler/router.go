package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cakeshop/internal/metrics"
	"github.com/hitoshi/cakeshop/internal/middleware"
	"github.com/hitoshi/cakeshop/internal/model"
)

// HealthChecker はヘルスチェックでストアの疎通を確認するためのインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	CSRF              *middleware.CSRFConfig // nilの場合はCSRF検証を行わない
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler // nilの場合は/metricsを公開しない
	HealthChecker     HealthChecker

	// アカウント
	AccountService AccountServiceInterface
	AuthConfig     AuthHandlerConfig

	// 店舗・ケーキ
	CatalogService CatalogServiceInterface
	CatalogConfig  CatalogHandlerConfig

	// カート
	CartService CartServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → CORS → Principal → Logging → RateLimit(General) → CSRF
//
// 各ルートのアクセス制御はポリシー（PermitAll / RequireAuthenticated / RequireRole）で宣言する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewPrincipalMiddleware(deps.TokenVerifier, deps.Metrics))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
	}
	if deps.CSRF != nil {
		r.Use(middleware.NewCSRFMiddleware(*deps.CSRF))
	}

	authHandler := NewAuthHandler(deps.AccountService, deps.AuthConfig)
	catalogHandler := NewCatalogHandler(deps.CatalogService, deps.CatalogConfig)
	cartHandler := NewCartHandler(deps.CartService)

	permitAll := middleware.PermitAll()
	authenticated := middleware.RequireAuthenticated()
	customer := middleware.RequireRole(model.RoleCustomer)
	seller := middleware.RequireRole(model.RoleSeller)

	authLimit := permitAll
	if deps.RateLimiter != nil {
		authLimit = deps.RateLimiter.AuthMiddleware()
	}

	// --- 運用エンドポイント ---
	r.With(permitAll).Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.With(permitAll).Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	if deps.CSRF != nil {
		r.With(permitAll).Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(*deps.CSRF))
	}

	r.Route("/api/auth", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.With(permitAll).Get("/homepage", authHandler.HomePage)
		r.With(permitAll, authLimit).Post("/signup", authHandler.Signup)
		r.With(permitAll, authLimit).Post("/login", authHandler.Login)

		// --- 認証済みユーザー ---
		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Post("/logout", authHandler.Logout)
			r.Get("/profile", authHandler.Profile)
			r.Get("/cakes", catalogHandler.ListCakes)
			r.Get("/cakes/paged", catalogHandler.ListCakesPaged)
		})

		r.With(customer).Post("/upgrade-to-seller", authHandler.UpgradeToSeller)

		// --- 販売者 ---
		r.Route("/seller", func(r chi.Router) {
			r.Use(seller)
			r.Post("/shop", catalogHandler.CreateShop)
			r.Get("/shop", catalogHandler.GetShop)
			r.Put("/shop", catalogHandler.UpdateShop)

			r.Post("/cakes", catalogHandler.AddCake)
			r.Get("/cakes", catalogHandler.SellerCakes)
			r.Put("/cakes/{cakeId}", catalogHandler.UpdateCake)
			r.Delete("/cakes/{cakeId}", catalogHandler.DeleteCake)
		})
	})

	// --- 顧客のカート ---
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(customer)
		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{itemId}", cartHandler.UpdateItem)
		r.Delete("/items/{itemId}", cartHandler.RemoveItem)
	})

	return r
}

// healthHandler はストアへの疎通を確認し、結果を返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				middleware.WriteAPIError(w, model.NewStoreUnavailableError(err))
				return
			}
		}
		writeSuccess(w, "OK", map[string]string{"status": "ok"})
	}
}
