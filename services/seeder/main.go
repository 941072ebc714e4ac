package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/epowweb/gridview/services/api/db"
	"github.com/epowweb/gridview/services/api/logging"
	"github.com/epowweb/gridview/services/seeder/internal/config"
	"github.com/epowweb/gridview/services/seeder/internal/ingest"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("seeder failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, "gridview-seeder")
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var writer ingest.Writer
	if cfg.DryRun {
		logger.Info("dry-run: skipping database connection")
	} else {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		writer = ingest.PoolWriter{Pool: pool}
	}

	stats, err := ingest.New(cfg.DataDir, cfg.BatchSize, cfg.DryRun, writer, logger).Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("seeding finished",
		zap.Bool("dry_run", cfg.DryRun),
		zap.Int("meter_files", stats.MeterFiles),
		zap.Int("readings", stats.Readings),
		zap.Int("skipped_readings", stats.SkippedReadings),
		zap.Int("heatmap_files", stats.HeatmapFiles),
		zap.Int("points", stats.Points),
		zap.Int("skipped_files", stats.SkippedFiles),
	)
	return nil
}
