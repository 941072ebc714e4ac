package files

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/epowweb/gridview/services/api/series"
)

const (
	// MeterDir holds one <meterId>.csv per meter below the data directory.
	MeterDir = "DatenSM"
	// HeatmapDir holds one zw_<YYYYMMDD_HHmmss>.csv per heatmap timestamp.
	HeatmapDir = "DatenSM_time"

	heatmapPrefix = "zw_"
	heatmapSuffix = ".csv"
)

// Store serves interval data straight from CSV files. It never returns an
// error: missing files and parse failures are logged and read as empty.
type Store struct {
	meterDir   string
	heatmapDir string
	logger     *zap.Logger
}

var _ series.Store = (*Store)(nil)

// New returns a Store rooted at dataDir.
func New(dataDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		meterDir:   filepath.Join(dataDir, MeterDir),
		heatmapDir: filepath.Join(dataDir, HeatmapDir),
		logger:     logger.Named("files"),
	}
}

// MeterFile returns the CSV path backing meterID.
func (s *Store) MeterFile(meterID string) string {
	return filepath.Join(s.meterDir, meterID+".csv")
}

// HeatmapFile returns the CSV path backing the heatmap slice at t.
func (s *Store) HeatmapFile(t time.Time) string {
	return filepath.Join(s.heatmapDir, heatmapPrefix+t.Format(series.CompactLayout)+heatmapSuffix)
}

// MeterSeries returns the readings of meterID within opts, decimated to
// opts.Limit (default 500) rows.
func (s *Store) MeterSeries(_ context.Context, meterID string, opts series.Options) ([]series.Reading, error) {
	path := s.MeterFile(meterID)
	rows, err := readMeterFile(path)
	if err != nil {
		s.logReadError("meter series", path, err, zap.String("meter_id", meterID))
		return []series.Reading{}, nil
	}

	rows, err = filterRange(rows, opts)
	if err != nil {
		s.logger.Warn("invalid series bounds", zap.String("meter_id", meterID),
			zap.String("start", opts.Start), zap.String("end", opts.End), zap.Error(err))
		return []series.Reading{}, nil
	}

	return series.Decimate(rows, opts.LimitOr(series.DefaultFileLimit)), nil
}

// MeterBounds returns the start of the first and the end of the last data
// row. Files are append ordered so no scan of the middle is needed.
func (s *Store) MeterBounds(_ context.Context, meterID string) (series.Bounds, error) {
	path := s.MeterFile(meterID)
	rows, err := readMeterFile(path)
	if err != nil {
		s.logReadError("meter bounds", path, err, zap.String("meter_id", meterID))
		return series.Bounds{}, nil
	}
	if len(rows) == 0 {
		return series.Bounds{}, nil
	}
	return series.Bounds{Start: rows[0].Start, End: rows[len(rows)-1].End}, nil
}

// HeatmapSlice returns the points of the slice file matching timestamp.
func (s *Store) HeatmapSlice(_ context.Context, timestamp string) ([]series.HeatmapPoint, error) {
	t, err := series.ParseHeatmapTimestamp(timestamp)
	if err != nil {
		s.logger.Warn("invalid heatmap timestamp", zap.String("timestamp", timestamp))
		return []series.HeatmapPoint{}, nil
	}

	path := s.HeatmapFile(t)
	points, err := readHeatmapFile(path)
	if err != nil {
		s.logReadError("heatmap slice", path, err, zap.String("timestamp", timestamp))
		return []series.HeatmapPoint{}, nil
	}
	return points, nil
}

// HeatmapTimestamps lists slice files as canonical timestamps, ascending.
func (s *Store) HeatmapTimestamps(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.heatmapDir)
	if err != nil {
		s.logReadError("heatmap timestamps", s.heatmapDir, err)
		return []string{}, nil
	}

	timestamps := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, ok := HeatmapName(entry.Name())
		if !ok {
			continue
		}
		if t, err := time.ParseInLocation(series.CompactLayout, raw, time.UTC); err == nil {
			raw = series.FormatTimestamp(t)
		}
		timestamps = append(timestamps, raw)
	}
	sort.Strings(timestamps)
	return timestamps, nil
}

// HeatmapName strips the zw_ prefix and .csv suffix from a heatmap file
// name. Names without both report false.
func HeatmapName(fileName string) (string, bool) {
	if !strings.HasPrefix(fileName, heatmapPrefix) || !strings.HasSuffix(fileName, heatmapSuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(fileName, heatmapPrefix), heatmapSuffix), true
}

func (s *Store) logReadError(what, path string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("path", path))
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn(what+": file not found", fields...)
		return
	}
	fields = append(fields, zap.Error(err))
	s.logger.Error(what+": read failed", fields...)
}

func filterRange(rows []series.Reading, opts series.Options) ([]series.Reading, error) {
	if opts.Start == "" && opts.End == "" {
		return rows, nil
	}

	var start, end time.Time
	var err error
	if opts.Start != "" {
		if start, err = series.ParseTimestamp(opts.Start); err != nil {
			return nil, err
		}
	}
	if opts.End != "" {
		if end, err = series.ParseTimestamp(opts.End); err != nil {
			return nil, err
		}
	}

	out := make([]series.Reading, 0, len(rows))
	for _, row := range rows {
		if opts.Start != "" {
			rowStart, err := series.ParseTimestamp(row.Start)
			if err != nil || rowStart.Before(start) {
				continue
			}
		}
		if opts.End != "" {
			rowEnd, err := series.ParseTimestamp(row.End)
			if err != nil || rowEnd.After(end) {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}
