package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/bookstore/internal/metrics"
	"github.com/hitoshi/bookstore/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger        *slog.Logger
	HealthChecker HealthChecker
	SessionFinder middleware.SessionFinder
	CSRFConfig    middleware.CSRFConfig
	RateLimiter   *middleware.RateLimiter
	Metrics       metrics.MetricsCollector
	// MetricsHandler がnilの場合 /metrics は公開しない
	MetricsHandler http.Handler

	// セッションCookie
	Cookies CookieConfig

	// 認証
	AuthService AuthServiceInterface

	// カタログ・カート
	Books        BookLister
	CartService  CartServiceInterface
	SessionStart SessionStarter

	// 注文
	OrderService OrderServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Session → Logging → RateLimit(General) → CSRF
//
// サインイン・登録・OAuth開始には専用のレート制限を追加する。
// /health と /metrics はセッションの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMetricsMiddleware(mc))

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies)
	cartHandler := NewCartHandler(deps.Books, deps.CartService, deps.SessionStart, deps.Cookies)
	orderHandler := NewOrderHandler(deps.OrderService)

	// --- セッション不要のルート ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- セッションを読むルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, pathHome, http.StatusFound)
		})

		// サインイン・登録フォーム（サインイン済みならホームへ）
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAnonymous(pathHome))
			r.Get(pathLogin, authHandler.LoginForm)
			r.Get(pathSignup, authHandler.SignupForm)
		})

		// 資格情報を受け取るルート
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post(pathLogin, authHandler.Login)
			r.Post(pathSignup, authHandler.Signup)
			r.Get("/auth/google", authHandler.GoogleLogin)
			r.Get("/auth/google/callback", authHandler.GoogleCallback)
		})

		r.Get("/logout", authHandler.Logout)

		// カート操作は未ログインでも受け付ける
		r.Post("/add_cart", cartHandler.AddCart)
		r.Post("/remove-item", cartHandler.RemoveItem)

		// --- サインインが必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthenticated(pathLogin))

			r.Get(pathHome, cartHandler.Home)
			r.Get(pathCart, cartHandler.Cart)
			r.Post("/placeorder", orderHandler.PlaceOrder)
			r.Get("/orders", orderHandler.Orders)
			r.Get("/account", orderHandler.Account)
			r.Get(pathProfile, orderHandler.Profile)
		})
	})

	return r
}
