package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/bookshelf/internal/middleware"
)

// healthCheckTimeout は /health でのDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はDBの疎通確認インターフェース。*sqlx.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// MetricsRecorder はHTTPリクエストとユーザー登録のメトリクスを記録する。
type MetricsRecorder interface {
	middleware.HTTPMetricsRecorder
	RegistrationRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 運用
	HealthChecker  HealthChecker
	Metrics        MetricsRecorder // nilの場合はメトリクスを記録しない
	MetricsHandler http.Handler    // nilの場合は /metrics を公開しない

	// 認証
	AuthService AuthService
	Cookies     CookieConfig

	// ユーザー
	UserStore          UserStore
	CredentialVerifier CredentialVerifier
	Notifier           NotificationDispatcher

	// 本
	BookStore BookStore
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → CORS → SecurityHeaders
//	  認証系（登録・ログイン）: → RateLimit(Auth)
//	  認証必須: → Session → CSRF → RateLimit(General)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))

	var registrations RegistrationRecorder
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
		registrations = deps.Metrics
	}

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.UserStore, deps.Cookies)
	userHandler := NewUserHandler(deps.UserStore, deps.CredentialVerifier, deps.Notifier, registrations, deps.Cookies)
	bookHandler := NewBookHandler(deps.BookStore)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		r.Post("/auth/logout", authHandler.Logout)

		// ログイン・ユーザー登録はIP単位でレート制限する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/user", userHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → CSRF → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/auth/me", authHandler.Me)

			// ユーザー管理
			r.Get("/user/users", userHandler.ListUsers)
			r.Get("/user/user/{id}", userHandler.GetUser)
			r.Delete("/user", userHandler.DeleteCurrentUser)
			r.Post("/user/update-password", userHandler.UpdatePassword)

			// 本管理
			r.Get("/books", bookHandler.ListBooks)
			r.Get("/books/shelf/{shelf}", bookHandler.FindByShelf)
			r.Get("/shelves", bookHandler.ListShelves)
			r.Post("/book", bookHandler.AddBook)
			r.Route("/book/{id}", func(r chi.Router) {
				r.Get("/", bookHandler.GetBook)
				r.Patch("/", bookHandler.UpdateBook)
				r.Delete("/", bookHandler.DeleteBook)
			})
		})
	})

	return r
}

// healthHandler はDBへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
