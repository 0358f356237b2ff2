package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/revu/internal/repository"
)

const (
	keyPrefix  = "revu:products:"
	versionKey = keyPrefix + "version"
)

// ProductListCache implements repository.ProductListCache using Redis.
// Pages are stored under a generation number; Invalidate bumps the generation
// so stale pages simply expire.
type ProductListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductListCache creates a new Redis-backed product list cache.
func NewProductListCache(client *redis.Client, ttl time.Duration) *ProductListCache {
	return &ProductListCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached page for filter, or nil on a miss.
func (c *ProductListCache) Get(ctx context.Context, filter repository.ProductFilter) (*repository.ProductPage, error) {
	key, err := c.key(ctx, filter)
	if err != nil {
		return nil, err
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get product page: %w", err)
	}

	var page repository.ProductPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("unmarshal product page: %w", err)
	}

	return &page, nil
}

// Set stores page for filter with the configured TTL.
func (c *ProductListCache) Set(ctx context.Context, filter repository.ProductFilter, page *repository.ProductPage) error {
	key, err := c.key(ctx, filter)
	if err != nil {
		return err
	}

	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("marshal product page: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set product page: %w", err)
	}

	return nil
}

// Invalidate bumps the cache generation.
func (c *ProductListCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("redis incr product cache version: %w", err)
	}
	return nil
}

func (c *ProductListCache) key(ctx context.Context, filter repository.ProductFilter) (string, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis get product cache version: %w", err)
	}

	category := "all"
	if filter.Category != nil {
		category = *filter.Category
	}

	return fmt.Sprintf("%sv%d:%s:%s:%d:%d", keyPrefix, version, category, filter.Sort, filter.Limit, filter.Offset), nil
}
