package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/revu/internal/config"
	"github.com/utafrali/revu/internal/event"
	handler "github.com/utafrali/revu/internal/handler/http"
	"github.com/utafrali/revu/internal/repository"
	rediscache "github.com/utafrali/revu/internal/repository/redis"
	"github.com/utafrali/revu/internal/service"
	"github.com/utafrali/revu/pkg/health"
	pkgkafka "github.com/utafrali/revu/pkg/kafka"
	"github.com/utafrali/revu/pkg/middleware"
	"github.com/utafrali/revu/pkg/tracing"
)

// ServiceName identifies the API in logs, metrics and traces.
const ServiceName = "revu-api"

// App wires together all dependencies and runs the revu API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	backend        *backend
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	chatLimiter    *middleware.RateLimiter
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	b, err := newBackend(ctx, cfg, ServiceName, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		backend:        b,
		tracerShutdown: tracerShutdown,
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return b.pool.Ping(ctx)
	})

	// Optional product list cache.
	var listCache repository.ProductListCache
	if client := newRedis(ctx, cfg, logger); client != nil {
		a.redis = client
		listCache = rediscache.NewProductListCache(client, cfg.ProductListCacheTTL)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	// Optional refresh events.
	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	refresher := service.NewReviewRefresher(service.RefresherConfig{
		Products:   b.products,
		Reviews:    b.reviews,
		Source:     b.amazon,
		Normalizer: b.normalizer,
		Events:     event.NewProducer(publisher, logger),
		ListCache:  listCache,
		CacheDays:  cfg.ReviewCacheDays,
	}, logger)

	svcs := handler.Services{
		Products:   service.NewProductService(b.products, b.reviews, refresher, listCache, logger),
		Categories: service.NewCategoryService(b.categories, b.products, logger),
		Chat:       service.NewChatService(b.products, b.reviews, b.anthropic, logger),
		Usage:      b.usage,
	}

	a.chatLimiter = middleware.NewPerMinuteLimiter(cfg.ChatRatePerMinute, cfg.ChatRateBurst, logger)

	router := handler.NewRouter(svcs, handler.RouterConfig{
		ServiceName: ServiceName,
		CORSOrigins: cfg.CORSAllowedOrigins,
		ChatLimiter: a.chatLimiter,
	}, healthHandler, logger)

	// Detail requests may wait on marketplace and model calls, so the write
	// timeout covers a full refresh.
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	limiterDone := make(chan struct{})
	defer close(limiterDone)
	go a.chatLimiter.Run(limiterDone)

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.backend.close()

	a.logger.Info("application shutdown complete")
	return nil
}
