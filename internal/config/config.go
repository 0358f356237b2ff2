package config

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/revu/pkg/config"
	"github.com/utafrali/revu/pkg/database"
)

// quotaSafetyBuffer is the number of monthly calls every metered API keeps in reserve.
const quotaSafetyBuffer = 10

// Config holds all configuration for the revu API and sync job.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional rotating log file
	LogFile           string `env:"LOG_FILE"`
	LogFileMaxMB      int    `env:"LOG_FILE_MAX_MB" envDefault:"50"`
	LogFileMaxBackups int    `env:"LOG_FILE_MAX_BACKUPS" envDefault:"5"`
	LogFileMaxAgeDays int    `env:"LOG_FILE_MAX_AGE_DAYS" envDefault:"14"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8000"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173,http://localhost:3000" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"revu"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"revu"`
	PostgresDB   string `env:"REVU_DB_NAME" envDefault:"revu"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Redis
	RedisEnabled        bool          `env:"REDIS_ENABLED" envDefault:"true"`
	RedisHost           string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort           int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize       int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisTimeout        time.Duration `env:"REDIS_TIMEOUT" envDefault:"2s"`
	ProductListCacheTTL time.Duration `env:"PRODUCT_LIST_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// SerpApi (Amazon search and product reviews)
	SerpApiKey          string        `env:"SERPAPI_API_KEY"`
	SerpApiBaseURL      string        `env:"SERPAPI_BASE_URL" envDefault:"https://serpapi.com"`
	SerpApiMonthlyLimit int           `env:"SERPAPI_MONTHLY_LIMIT" envDefault:"250"`
	SerpApiTimeout      time.Duration `env:"SERPAPI_TIMEOUT" envDefault:"20s"`
	AmazonDomain        string        `env:"SERPAPI_AMAZON_DOMAIN" envDefault:"amazon.com"`

	// Best Buy Products API
	BestBuyKey          string        `env:"BESTBUY_API_KEY"`
	BestBuyBaseURL      string        `env:"BESTBUY_BASE_URL" envDefault:"https://api.bestbuy.com/v1"`
	BestBuyMonthlyLimit int           `env:"BESTBUY_MONTHLY_LIMIT" envDefault:"50000"`
	BestBuyTimeout      time.Duration `env:"BESTBUY_TIMEOUT" envDefault:"15s"`

	// Anthropic Messages API (sentiment classification and chat)
	AnthropicKey     string        `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string        `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`
	AnthropicModel   string        `env:"ANTHROPIC_MODEL" envDefault:"claude-haiku-4-5-20251001"`
	AnthropicTimeout time.Duration `env:"ANTHROPIC_TIMEOUT" envDefault:"30s"`

	// Review pipeline
	ReviewCacheDays    int `env:"REVIEW_CACHE_DAYS" envDefault:"7"`
	SentimentBatchSize int `env:"SENTIMENT_BATCH_SIZE" envDefault:"10"`

	// Chat endpoint rate limit per client IP
	ChatRatePerMinute int `env:"CHAT_RATE_PER_MINUTE" envDefault:"10"`
	ChatRateBurst     int `env:"CHAT_RATE_BURST" envDefault:"3"`
}

// Load reads configuration from a .env file (when present) and environment variables.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}

	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load revu config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and required settings.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return errors.New("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return errors.New("POSTGRES_USER is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.SerpApiMonthlyLimit <= quotaSafetyBuffer {
		return fmt.Errorf("SERPAPI_MONTHLY_LIMIT must be greater than %d, got %d", quotaSafetyBuffer, c.SerpApiMonthlyLimit)
	}
	if c.BestBuyMonthlyLimit <= quotaSafetyBuffer {
		return fmt.Errorf("BESTBUY_MONTHLY_LIMIT must be greater than %d, got %d", quotaSafetyBuffer, c.BestBuyMonthlyLimit)
	}
	if c.ReviewCacheDays < 0 {
		return fmt.Errorf("REVIEW_CACHE_DAYS must not be negative, got %d", c.ReviewCacheDays)
	}
	if c.SentimentBatchSize < 1 {
		return fmt.Errorf("SENTIMENT_BATCH_SIZE must be positive, got %d", c.SentimentBatchSize)
	}
	if c.ChatRatePerMinute < 1 {
		return fmt.Errorf("CHAT_RATE_PER_MINUTE must be positive, got %d", c.ChatRatePerMinute)
	}
	return nil
}

// Postgres returns the connection settings for database.NewPostgresPool.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the connection settings for database.NewRedisClient.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:         c.RedisHost,
		Port:         c.RedisPort,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		PoolSize:     c.RedisPoolSize,
		DialTimeout:  c.RedisTimeout,
		ReadTimeout:  c.RedisTimeout,
		WriteTimeout: c.RedisTimeout,
	}
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
