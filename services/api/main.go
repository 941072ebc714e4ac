package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/epowweb/gridview/services/api/cache"
	"github.com/epowweb/gridview/services/api/config"
	"github.com/epowweb/gridview/services/api/db"
	"github.com/epowweb/gridview/services/api/files"
	httpserver "github.com/epowweb/gridview/services/api/http"
	"github.com/epowweb/gridview/services/api/logging"
	"github.com/epowweb/gridview/services/api/series"
	"github.com/epowweb/gridview/services/api/topology"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, "gridview-api")
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	topo := topology.Load(cfg.ConfigFile, logger)

	selector := db.NewSelector(cfg.DatabaseURL, logger)
	defer selector.Close()

	var store series.Store
	backend := "files"
	if selector.HasBackend(ctx) {
		store = selector.Store()
		backend = "postgres"
	} else {
		store = files.New(cfg.DataDir, logger)
	}

	var resultCache series.Cache
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, heatmap cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			defer client.Close()
			resultCache = cache.NewRedisCache(client, cfg.CacheTTL)
		}
	}

	svc := series.NewService(store, resultCache, logger)
	srv := httpserver.New(cfg, svc, topo, backend, logger)
	logger.Info("REST API listening",
		zap.String("addr", cfg.ListenAddr()),
		zap.String("backend", backend),
		zap.String("data_dir", cfg.DataDir),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
