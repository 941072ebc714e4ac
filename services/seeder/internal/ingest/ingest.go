// Package ingest copies the CSV data directory into Postgres.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/epowweb/gridview/services/api/db"
	"github.com/epowweb/gridview/services/api/files"
	"github.com/epowweb/gridview/services/api/series"
)

// Writer persists parsed rows.
type Writer interface {
	UpsertReadings(ctx context.Context, meterID string, readings []series.Reading) (skipped int, err error)
	UpsertHeatmap(ctx context.Context, ts time.Time, points []series.HeatmapPoint) error
}

// PoolWriter writes through the relational backend's batch upserts.
type PoolWriter struct {
	Pool *pgxpool.Pool
}

func (w PoolWriter) UpsertReadings(ctx context.Context, meterID string, readings []series.Reading) (int, error) {
	return db.UpsertReadings(ctx, w.Pool, meterID, readings)
}

func (w PoolWriter) UpsertHeatmap(ctx context.Context, ts time.Time, points []series.HeatmapPoint) error {
	return db.UpsertHeatmap(ctx, w.Pool, ts, points)
}

// Stats summarizes one seeding run.
type Stats struct {
	MeterFiles      int
	Readings        int
	SkippedReadings int
	HeatmapFiles    int
	Points          int
	SkippedFiles    int
}

// Seeder walks DatenSM/*.csv and DatenSM_time/zw_*.csv below a data dir.
type Seeder struct {
	dataDir   string
	batchSize int
	dryRun    bool
	writer    Writer
	logger    *zap.Logger
}

// New returns a Seeder. In dry-run mode writer may be nil.
func New(dataDir string, batchSize int, dryRun bool, writer Writer, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &Seeder{
		dataDir:   dataDir,
		batchSize: batchSize,
		dryRun:    dryRun,
		writer:    writer,
		logger:    logger.Named("ingest"),
	}
}

// Run seeds meter readings first, then heatmap slices. Unreadable files are
// skipped; the first write error aborts the run.
func (s *Seeder) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.seedMeters(ctx, &stats); err != nil {
		return stats, err
	}
	if err := s.seedHeatmaps(ctx, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Seeder) seedMeters(ctx context.Context, stats *Stats) error {
	dir := filepath.Join(s.dataDir, files.MeterDir)
	names, err := s.listCSV(dir)
	if err != nil {
		return err
	}

	for _, name := range names {
		meterID := strings.TrimSuffix(name, ".csv")
		readings, err := readFile(filepath.Join(dir, name), files.ParseMeterCSV)
		if err != nil {
			s.logger.Warn("skipping meter file", zap.String("file", name), zap.Error(err))
			stats.SkippedFiles++
			continue
		}
		stats.MeterFiles++

		for _, chunk := range chunks(readings, s.batchSize) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s.dryRun {
				stats.Readings += len(chunk)
				continue
			}
			skipped, err := s.writer.UpsertReadings(ctx, meterID, chunk)
			if err != nil {
				return fmt.Errorf("upsert readings for %s: %w", meterID, err)
			}
			stats.Readings += len(chunk) - skipped
			stats.SkippedReadings += skipped
		}
		s.logger.Debug("meter seeded", zap.String("meter_id", meterID), zap.Int("readings", len(readings)))
	}
	return nil
}

func (s *Seeder) seedHeatmaps(ctx context.Context, stats *Stats) error {
	dir := filepath.Join(s.dataDir, files.HeatmapDir)
	names, err := s.listCSV(dir)
	if err != nil {
		return err
	}

	for _, name := range names {
		raw, ok := files.HeatmapName(name)
		if !ok {
			continue
		}
		ts, err := time.ParseInLocation(series.CompactLayout, raw, time.UTC)
		if err != nil {
			s.logger.Warn("skipping heatmap file with unparseable name", zap.String("file", name))
			stats.SkippedFiles++
			continue
		}
		points, err := readFile(filepath.Join(dir, name), files.ParseHeatmapCSV)
		if err != nil {
			s.logger.Warn("skipping heatmap file", zap.String("file", name), zap.Error(err))
			stats.SkippedFiles++
			continue
		}
		stats.HeatmapFiles++

		for _, chunk := range chunks(points, s.batchSize) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !s.dryRun {
				if err := s.writer.UpsertHeatmap(ctx, ts, chunk); err != nil {
					return fmt.Errorf("upsert heatmap %s: %w", series.FormatTimestamp(ts), err)
				}
			}
			stats.Points += len(chunk)
		}
	}
	return nil
}

// listCSV returns the sorted .csv file names in dir. A missing directory is
// logged and treated as empty.
func (s *Seeder) listCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("data directory not found", zap.String("dir", dir))
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func readFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func chunks[T any](items []T, size int) [][]T {
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
