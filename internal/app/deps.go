package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/revu/internal/catalog"
	"github.com/utafrali/revu/internal/config"
	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/llm"
	"github.com/utafrali/revu/internal/marketplace"
	"github.com/utafrali/revu/internal/quota"
	"github.com/utafrali/revu/internal/repository/postgres"
	"github.com/utafrali/revu/internal/repository/postgres/migrations"
	"github.com/utafrali/revu/internal/sentiment"
	"github.com/utafrali/revu/internal/service"
	"github.com/utafrali/revu/pkg/database"
	"github.com/utafrali/revu/pkg/httpclient"
)

// backend holds the storage and outbound API clients shared by the API
// server and the sync job.
type backend struct {
	pool       *pgxpool.Pool
	products   *postgres.ProductRepository
	reviews    *postgres.ReviewRepository
	categories *postgres.CategoryRepository
	resetter   *postgres.ResetRepository
	serpApi    *quota.Gateway
	bestBuyAPI *quota.Gateway
	amazon     *marketplace.Client
	bestBuy    *catalog.Client
	anthropic  *llm.Client
	normalizer *sentiment.Normalizer
	usage      *service.UsageService
}

// newBackend connects to PostgreSQL, applies migrations and builds the
// metered API clients.
func newBackend(ctx context.Context, cfg *config.Config, serviceName string, logger *slog.Logger) (*backend, error) {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	database.RegisterPoolMetrics(pool, serviceName)

	b := &backend{
		pool:       pool,
		products:   postgres.NewProductRepository(pool),
		reviews:    postgres.NewReviewRepository(pool),
		categories: postgres.NewCategoryRepository(pool),
		resetter:   postgres.NewResetRepository(pool),
	}
	usageRepo := postgres.NewUsageRepository(pool)

	b.serpApi = quota.NewGateway(quota.Config{
		API:          domain.APISerpApi,
		BaseURL:      cfg.SerpApiBaseURL,
		APIKey:       cfg.SerpApiKey,
		APIKeyParam:  "api_key",
		MonthlyLimit: cfg.SerpApiMonthlyLimit,
		Timeout:      cfg.SerpApiTimeout,
	}, breakerClient(domain.APISerpApi, cfg.SerpApiTimeout, logger), usageRepo, logger)

	b.bestBuyAPI = quota.NewGateway(quota.Config{
		API:          domain.APIBestBuy,
		BaseURL:      cfg.BestBuyBaseURL,
		APIKey:       cfg.BestBuyKey,
		APIKeyParam:  "apiKey",
		MonthlyLimit: cfg.BestBuyMonthlyLimit,
		Timeout:      cfg.BestBuyTimeout,
	}, breakerClient(domain.APIBestBuy, cfg.BestBuyTimeout, logger), usageRepo, logger)

	b.amazon = marketplace.NewClient(b.serpApi, cfg.AmazonDomain, logger)
	b.bestBuy = catalog.NewClient(b.bestBuyAPI, logger)

	b.anthropic = llm.NewClient(llm.Config{
		APIKey:  cfg.AnthropicKey,
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.AnthropicModel,
		Timeout: cfg.AnthropicTimeout,
	}, breakerClient("anthropic", cfg.AnthropicTimeout, logger))
	b.normalizer = sentiment.NewNormalizer(b.anthropic, cfg.SentimentBatchSize, logger)

	b.usage = service.NewUsageService(b.serpApi, b.bestBuyAPI)

	for _, api := range []*quota.Gateway{b.serpApi, b.bestBuyAPI} {
		if !api.Configured() {
			logger.Warn("api key not set, calls will be skipped", slog.String("api", api.API()))
		}
	}
	if !b.anthropic.Configured() {
		logger.Warn("anthropic api key not set, sentiment uses the star-rating heuristic and chat is disabled")
	}

	return b, nil
}

// breakerClient returns a retrying HTTP client behind a circuit breaker
// named after the API it calls.
func breakerClient(name string, timeout time.Duration, logger *slog.Logger) httpclient.Doer {
	httpCfg := httpclient.DefaultConfig()
	if timeout > 0 {
		httpCfg.Timeout = timeout
	}
	return httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig(name),
		logger,
	)
}

func (b *backend) close() {
	b.pool.Close()
}

// newRedis connects to Redis when enabled. A failed connection disables the
// list cache instead of failing startup.
func newRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *goredis.Client {
	if !cfg.RedisEnabled {
		return nil
	}
	client, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, product list cache disabled",
			slog.String("host", cfg.RedisHost),
			slog.String("error", err.Error()),
		)
		return nil
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)
	return client
}
