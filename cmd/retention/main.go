// Package main is the entry point for the prediction history retention job.
//
// The job archives prediction records older than the configured retention
// period into gzip-compressed JSON-lines files and deletes them from the
// database. Intended to run on a schedule (cron, systemd timer). Exits
// non-zero on failure so the scheduler can alert.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rainbowcast/internal/config"
	"rainbowcast/internal/db"
	"rainbowcast/internal/retention"
	"rainbowcast/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for the retention job")
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("retention job starting",
		"environment", cfg.Environment,
		"retention_days", cfg.Retention.Days,
		"archive_dir", cfg.Retention.ArchiveDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	repo := db.NewPredictionRepository(pool)
	archiver := retention.NewArchiver(repo, cfg.Retention.ArchiveDir, cfg.Retention.BatchSize, logger, types.RealClock{})

	start := time.Now()
	report, err := archiver.Run(ctx, time.Duration(cfg.Retention.Days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("retention run failed: %w", err)
	}

	logger.Info("retention job complete",
		"archived", report.Archived,
		"deleted", report.Deleted,
		"archive_path", report.ArchivePath,
		"cutoff", report.Cutoff.Format(time.RFC3339),
		"duration", time.Since(start).String(),
	)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
