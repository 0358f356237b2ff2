package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, 250, cfg.SerpApiMonthlyLimit)
	assert.Equal(t, 20*time.Second, cfg.SerpApiTimeout)
	assert.Equal(t, 50000, cfg.BestBuyMonthlyLimit)
	assert.Equal(t, 15*time.Second, cfg.BestBuyTimeout)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.AnthropicModel)
	assert.Equal(t, 7, cfg.ReviewCacheDays)
	assert.Equal(t, 10, cfg.SentimentBatchSize)
	assert.Equal(t, 5*time.Minute, cfg.ProductListCacheTTL)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.SerpApiKey)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SERPAPI_API_KEY", "serp-key")
	t.Setenv("REVIEW_CACHE_DAYS", "0")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "serp-key", cfg.SerpApiKey)
	assert.Equal(t, 0, cfg.ReviewCacheDays)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:            8000,
			PostgresHost:        "localhost",
			PostgresUser:        "revu",
			OTELSampleRate:      1,
			SerpApiMonthlyLimit: 250,
			BestBuyMonthlyLimit: 50000,
			ReviewCacheDays:     7,
			SentimentBatchSize:  10,
			ChatRatePerMinute:   10,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTPPort = 70000 }, "invalid HTTP port"},
		{"postgres host", func(c *Config) { c.PostgresHost = "" }, "POSTGRES_HOST"},
		{"postgres user", func(c *Config) { c.PostgresUser = "" }, "POSTGRES_USER"},
		{"kafka brokers", func(c *Config) { c.KafkaEnabled = true; c.KafkaBrokers = nil }, "KAFKA_BROKERS"},
		{"sample rate", func(c *Config) { c.OTELSampleRate = 1.5 }, "OTEL_SAMPLE_RATE"},
		{"serpapi limit", func(c *Config) { c.SerpApiMonthlyLimit = 10 }, "SERPAPI_MONTHLY_LIMIT"},
		{"bestbuy limit", func(c *Config) { c.BestBuyMonthlyLimit = 5 }, "BESTBUY_MONTHLY_LIMIT"},
		{"cache days", func(c *Config) { c.ReviewCacheDays = -1 }, "REVIEW_CACHE_DAYS"},
		{"batch size", func(c *Config) { c.SentimentBatchSize = 0 }, "SENTIMENT_BATCH_SIZE"},
		{"chat rate", func(c *Config) { c.ChatRatePerMinute = 0 }, "CHAT_RATE_PER_MINUTE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestPostgresAndRedisSettings(t *testing.T) {
	cfg := &Config{
		PostgresHost:          "db",
		PostgresPort:          5433,
		PostgresUser:          "u",
		PostgresPass:          "p",
		PostgresDB:            "revu",
		PostgresSSL:           "require",
		DBMaxConnLifetimeMins: 60,
		RedisHost:             "cache",
		RedisPort:             6380,
	}

	pg := cfg.Postgres()
	assert.Equal(t, "postgres://u:p@db:5433/revu?sslmode=require", pg.DSN())
	assert.Equal(t, time.Hour, pg.MaxConnLifetime)
	assert.Equal(t, "cache:6380", cfg.Redis().Addr())
}
