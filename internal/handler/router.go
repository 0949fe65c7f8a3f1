package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tweetkiosk/internal/metrics"
	"github.com/hitoshi/tweetkiosk/internal/middleware"
)

// HealthChecker はヘルスチェックでDB疎通を確認するためのインターフェース。
// *sql.DB をそのまま渡すことができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 監視
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	// ツイート
	TweetService   TweetServiceInterface
	RefreshService RefreshServiceInterface
	MediaService   MediaServiceInterface

	// ハンドル
	HandleService HandleServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → SecurityHeaders → Logging → RateLimit(GeneralMiddleware)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェアを最上位に適用
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	tweetHandler := NewTweetHandler(deps.TweetService, deps.RefreshService)
	mediaHandler := NewMediaHandler(deps.MediaService)
	handleHandler := NewHandleHandler(deps.HandleService)

	// --- レート制限対象外のルート ---

	// ヘルスチェック（DB疎通確認を含む）
	r.Get("/health", newHealthHandler(deps.HealthChecker))

	// Prometheusメトリクス
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- レート制限対象のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ツイート表示ローテーション
		r.Route("/api/tweets", func(r chi.Router) {
			r.Get("/next", tweetHandler.GetNext)
			r.Get("/stats", tweetHandler.GetStats)

			// POST /api/tweets/refresh - 全アクティブハンドルの取り込み（専用レート制限を追加）
			r.With(deps.RateLimiter.RefreshMiddleware()).Post("/refresh", tweetHandler.Refresh)

			r.Route("/{tweet_id}", func(r chi.Router) {
				r.Post("/mark-displayed", tweetHandler.MarkDisplayed)

				// GET /api/tweets/{tweet_id}/media - メディアプロキシ
				r.Get("/media", mediaHandler.GetTweetMedia)
			})
		})

		// ハンドル管理
		r.Route("/api/handles", func(r chi.Router) {
			r.Get("/", handleHandler.List)
			r.Post("/", handleHandler.Register)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", handleHandler.Update)
				r.Patch("/toggle", handleHandler.Toggle)
				r.Delete("/", handleHandler.Delete)
			})
		})
	})

	return r
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// newHealthHandler はヘルスチェックハンドラーを返す。
// checkerがnilの場合はDB疎通確認を行わずhealthyを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(healthResponse{Status: "unhealthy"})
				return
			}
		}

		json.NewEncoder(w).Encode(healthResponse{Status: "healthy"})
	}
}
