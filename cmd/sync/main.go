package main

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utafrali/revu/internal/app"
	"github.com/utafrali/revu/internal/config"
	"github.com/utafrali/revu/internal/service"
	"github.com/utafrali/revu/pkg/logger"
)

const (
	cleanFlag       = "clean"
	limitFlag       = "limit"
	sourceFlag      = "source"
	seedIfEmptyFlag = "seed-if-empty"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revu-sync",
		Short: "Populate the product catalog from Amazon and Best Buy",
		Long: `Search Amazon (through SerpApi) and Best Buy for products in every
canonical category and upsert them into the catalog.

Examples:
  revu-sync                          # Amazon, 15 products per query
  revu-sync --source all --limit 5   # Amazon and Best Buy
  revu-sync --clean                  # wipe products and reviews first
  revu-sync --seed-if-empty          # only sync when the catalog is empty`,
		SilenceUsage: true,
		RunE:         runSync,
	}

	cmd.Flags().Bool(cleanFlag, false, "Delete all products, reviews and categories before syncing")
	cmd.Flags().Int(limitFlag, service.DefaultSyncLimit, "Products to keep per search query")
	cmd.Flags().String(sourceFlag, string(service.SyncSourceAmazon), "Listing source: amazon, bestbuy or all")
	cmd.Flags().Bool(seedIfEmptyFlag, false, "Skip the sync when products already exist")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	opts, err := syncOptions(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logFile := logger.NewWithFile(app.SyncServiceName, cfg.LogLevel, logger.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogFileMaxMB,
		MaxBackups: cfg.LogFileMaxBackups,
		MaxAgeDays: cfg.LogFileMaxAgeDays,
	})
	defer func() { _ = logFile.Close() }()

	log.Info("starting catalog sync",
		slog.String("source", string(opts.Source)),
		slog.Int("limit", opts.Limit),
		slog.Bool("clean", opts.Clean),
		slog.Bool("seed_if_empty", opts.SeedIfEmpty),
	)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := app.RunSync(ctx, cfg, opts, log)
	if err != nil {
		log.Error("catalog sync failed", slog.String("error", err.Error()))
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

func syncOptions(cmd *cobra.Command) (service.SyncOptions, error) {
	flags := cmd.Flags()
	clean, _ := flags.GetBool(cleanFlag)
	limit, _ := flags.GetInt(limitFlag)
	rawSource, _ := flags.GetString(sourceFlag)
	seed, _ := flags.GetBool(seedIfEmptyFlag)

	source, err := service.ParseSyncSource(rawSource)
	if err != nil {
		return service.SyncOptions{}, err
	}
	switch {
	case !flags.Changed(limitFlag):
		// Let the service pick the default, which is smaller for seeding.
		limit = 0
	case limit < 1:
		return service.SyncOptions{}, fmt.Errorf("--%s must be positive, got %d", limitFlag, limit)
	}
	return service.SyncOptions{Clean: clean, Limit: limit, Source: source, SeedIfEmpty: seed}, nil
}

func printReport(w io.Writer, r *service.SyncReport) {
	if r.SeedSkipped {
		fmt.Fprintln(w, "Products already present, seed skipped.")
		return
	}

	fmt.Fprintf(w, "Queries: %d (%d failed)\n", r.Queries, r.FailedQueries)
	fmt.Fprintf(w, "Created: %d  Updated: %d  Skipped: %d\n", r.Created, r.Updated, r.Skipped)
	fmt.Fprintf(w, "Total products: %d\n\n", r.TotalProducts)

	fmt.Fprintln(w, "Categories:")
	for _, c := range r.Categories {
		fmt.Fprintf(w, "  %-28s %d\n", c.Name, c.ProductCount)
	}

	fmt.Fprintln(w, "\nTop rated:")
	for _, p := range r.TopRated {
		fmt.Fprintf(w, "  %.1f/10  %s\n", p.Rating, p.Name)
	}

	if len(r.Usage) > 0 {
		fmt.Fprintln(w, "\nAPI usage this month:")
		for _, api := range slices.Sorted(maps.Keys(r.Usage)) {
			u := r.Usage[api]
			fmt.Fprintf(w, "  %-8s %d/%d used, %d remaining\n", api, u.Used, u.Limit, u.Remaining)
		}
	}
}
