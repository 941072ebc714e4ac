package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultDataDir   = "data/smdt-sample"
	defaultBatchSize = 5000
)

// Config holds runtime configuration for the seeder.
type Config struct {
	DatabaseURL string
	DataDir     string
	BatchSize   int
	DryRun      bool
	LogLevel    string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	// a dry run never connects
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("SMDT_PG_URL"))
	if cfg.DatabaseURL == "" && !cfg.DryRun {
		return cfg, errors.New("SMDT_PG_URL is required")
	}

	cfg.DataDir = strings.TrimSpace(os.Getenv("SMDT_DATA_DIR"))
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}

	cfg.BatchSize = defaultBatchSize
	if v := strings.TrimSpace(os.Getenv("SEED_BATCH_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid SEED_BATCH_SIZE: %s", v)
		}
		cfg.BatchSize = n
	}

	cfg.LogLevel = os.Getenv("LOG_LEVEL")

	return cfg, nil
}
