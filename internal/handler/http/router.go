package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/revu/internal/service"
	"github.com/utafrali/revu/pkg/health"
	"github.com/utafrali/revu/pkg/middleware"
)

// Services are the application services the routes call.
type Services struct {
	Products   *service.ProductService
	Categories *service.CategoryService
	Chat       *service.ChatService
	Usage      *service.UsageService
}

// RouterConfig holds router settings. ChatLimiter may be nil.
type RouterConfig struct {
	ServiceName string
	CORSOrigins []string
	ChatLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all revu API routes registered.
func NewRouter(svcs Services, cfg RouterConfig, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	// Health and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	productHandler := NewProductHandler(svcs.Products, logger)
	chatHandler := NewChatHandler(svcs.Chat, logger)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", productHandler.ListProducts)
		r.Get("/{id}", productHandler.GetProduct)

		r.Group(func(r chi.Router) {
			if cfg.ChatLimiter != nil {
				r.Use(cfg.ChatLimiter.Middleware)
			}
			r.Post("/{id}/chat", chatHandler.Chat)
		})
	})

	categoryHandler := NewCategoryHandler(svcs.Categories, logger)

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Use(middleware.CacheControl(time.Minute))

		r.Get("/", categoryHandler.ListCategories)
		r.Get("/search", categoryHandler.SearchCategories)
		r.Get("/{slug}/products", categoryHandler.GetCategoryProducts)
	})

	usageHandler := NewUsageHandler(svcs.Usage, logger)
	r.Get("/api/v1/usage", usageHandler.GetUsage)

	return r
}
