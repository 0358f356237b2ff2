package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/revu/internal/app"
	"github.com/utafrali/revu/internal/config"
	"github.com/utafrali/revu/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from .env and environment variables.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize structured logger, optionally mirrored to a rotating file.
	log, logFile := logger.NewWithFile(app.ServiceName, cfg.LogLevel, logger.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogFileMaxMB,
		MaxBackups: cfg.LogFileMaxBackups,
		MaxAgeDays: cfg.LogFileMaxAgeDays,
	})
	defer func() { _ = logFile.Close() }()

	log.Info("starting revu api",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
	)

	// Create the application with all dependencies wired.
	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run the application. This blocks until shutdown.
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run application: %w", err)
	}

	log.Info("revu api stopped")
	return nil
}
