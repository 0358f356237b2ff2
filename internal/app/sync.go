package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/revu/internal/config"
	"github.com/utafrali/revu/internal/repository"
	rediscache "github.com/utafrali/revu/internal/repository/redis"
	"github.com/utafrali/revu/internal/service"
)

// SyncServiceName identifies the sync job in logs and metrics.
const SyncServiceName = "revu-sync"

// RunSync connects to the store, runs one catalog sync and closes every
// connection before returning.
func RunSync(ctx context.Context, cfg *config.Config, opts service.SyncOptions, logger *slog.Logger) (*service.SyncReport, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	b, err := newBackend(connectCtx, cfg, SyncServiceName, logger)
	if err != nil {
		return nil, err
	}
	defer b.close()

	var listCache repository.ProductListCache
	if client := newRedis(connectCtx, cfg, logger); client != nil {
		defer client.Close()
		listCache = rediscache.NewProductListCache(client, cfg.ProductListCacheTTL)
	}

	svc := service.NewSyncService(b.products, b.categories, b.resetter, b.amazon, b.bestBuy, listCache, b.usage, logger)

	report, err := svc.Run(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sync catalog: %w", err)
	}
	return report, nil
}
