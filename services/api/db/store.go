package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/epowweb/gridview/services/api/series"
)

// querier is the subset of *pgxpool.Pool the store needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads meter readings and heatmap points from Postgres. Every query
// failure is logged and returned.
type Store struct {
	pool   querier
	logger *zap.Logger
}

var _ series.AggregatingStore = (*Store)(nil)

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger.Named("db")}
}

const readingColumns = `
    to_char(start_ts, 'YYYY-MM-DD HH24:MI:SS'),
    to_char(end_ts, 'YYYY-MM-DD HH24:MI:SS'),
    power_kw, power_original_kw, energy_kwh, energy_original_kwh, error_code::bigint
`

const meterSeriesBase = `
    SELECT` + readingColumns + `
    FROM meter_readings
    WHERE meter_id = $1
`

const aggregatedSeriesBase = `
    SELECT
        to_char(start_ts, 'YYYY-MM-DD HH24:MI:SS'),
        to_char(end_ts, 'YYYY-MM-DD HH24:MI:SS'),
        SUM(power_kw), SUM(power_original_kw), SUM(energy_kwh), SUM(energy_original_kwh),
        MAX(error_code)::bigint
    FROM meter_readings
    WHERE meter_id = ANY($1::text[])
`

const boundsSQL = `
    SELECT to_char(MIN(start_ts), 'YYYY-MM-DD HH24:MI:SS'), to_char(MAX(end_ts), 'YYYY-MM-DD HH24:MI:SS')
    FROM meter_readings
    WHERE meter_id = ANY($1::text[])
`

const heatmapTimestampsSQL = `
    SELECT to_char(ts, 'YYYY-MM-DD HH24:MI:SS')
    FROM heatmap_points
    GROUP BY ts
    ORDER BY ts ASC
`

const heatmapSliceSQL = `
    SELECT meter_id, value_kw, unit
    FROM heatmap_points
    WHERE ts = $1
    ORDER BY meter_id ASC
`

// seriesQuery appends the optional time bounds, ordering and limit to base,
// whose first placeholder is already bound to first.
func seriesQuery(base string, groupBy string, first any, opts series.Options) (string, []any, error) {
	args := []any{first}
	clause := ""
	if opts.Start != "" {
		start, err := series.ParseTimestamp(opts.Start)
		if err != nil {
			return "", nil, fmt.Errorf("invalid start: %w", err)
		}
		args = append(args, start)
		clause += " AND start_ts >= $" + strconv.Itoa(len(args))
	}
	if opts.End != "" {
		end, err := series.ParseTimestamp(opts.End)
		if err != nil {
			return "", nil, fmt.Errorf("invalid end: %w", err)
		}
		args = append(args, end)
		clause += " AND end_ts <= $" + strconv.Itoa(len(args))
	}
	args = append(args, opts.LimitOr(series.DefaultQueryLimit))
	sql := base + clause + groupBy + " ORDER BY start_ts ASC LIMIT $" + strconv.Itoa(len(args))
	return sql, args, nil
}

// MeterSeries returns one meter's readings ordered by start, capped at
// opts.Limit (default 2000).
func (s *Store) MeterSeries(ctx context.Context, meterID string, opts series.Options) ([]series.Reading, error) {
	sql, args, err := seriesQuery(meterSeriesBase, "", meterID, opts)
	if err != nil {
		s.logger.Error("load meter series", zap.String("meter_id", meterID), zap.Error(err))
		return nil, fmt.Errorf("load meter series %s: %w", meterID, err)
	}
	readings, err := s.queryReadings(ctx, sql, args)
	if err != nil {
		s.logger.Error("load meter series", zap.String("meter_id", meterID), zap.Error(err))
		return nil, fmt.Errorf("load meter series %s: %w", meterID, err)
	}
	return readings, nil
}

// AggregatedSeries sums readings of meterIDs per (start_ts, end_ts) in one
// grouped query, keeping the highest error code per interval.
func (s *Store) AggregatedSeries(ctx context.Context, meterIDs []string, opts series.Options) ([]series.Reading, error) {
	if len(meterIDs) == 0 {
		return []series.Reading{}, nil
	}
	sql, args, err := seriesQuery(aggregatedSeriesBase, " GROUP BY start_ts, end_ts", meterIDs, opts)
	if err != nil {
		s.logger.Error("load aggregated series", zap.Int("meter_count", len(meterIDs)), zap.Error(err))
		return nil, fmt.Errorf("load aggregated series for %d meters: %w", len(meterIDs), err)
	}
	readings, err := s.queryReadings(ctx, sql, args)
	if err != nil {
		s.logger.Error("load aggregated series", zap.Int("meter_count", len(meterIDs)), zap.Error(err))
		return nil, fmt.Errorf("load aggregated series for %d meters: %w", len(meterIDs), err)
	}
	return readings, nil
}

// MeterBounds returns the bounds of a single meter.
func (s *Store) MeterBounds(ctx context.Context, meterID string) (series.Bounds, error) {
	return s.AggregatedBounds(ctx, []string{meterID})
}

// AggregatedBounds returns MIN(start_ts) and MAX(end_ts) over meterIDs.
func (s *Store) AggregatedBounds(ctx context.Context, meterIDs []string) (series.Bounds, error) {
	if len(meterIDs) == 0 {
		return series.Bounds{}, nil
	}
	var start, end *string
	if err := s.pool.QueryRow(ctx, boundsSQL, meterIDs).Scan(&start, &end); err != nil {
		s.logger.Error("load bounds", zap.Int("meter_count", len(meterIDs)), zap.Error(err))
		return series.Bounds{}, fmt.Errorf("load bounds for %d meters: %w", len(meterIDs), err)
	}
	var b series.Bounds
	if start != nil {
		b.Start = *start
	}
	if end != nil {
		b.End = *end
	}
	return b, nil
}

// HeatmapTimestamps lists distinct heatmap timestamps ascending.
func (s *Store) HeatmapTimestamps(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, heatmapTimestampsSQL)
	if err != nil {
		s.logger.Error("list heatmap timestamps", zap.Error(err))
		return nil, fmt.Errorf("list heatmap timestamps: %w", err)
	}
	timestamps, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		s.logger.Error("list heatmap timestamps", zap.Error(err))
		return nil, fmt.Errorf("list heatmap timestamps: %w", err)
	}
	if timestamps == nil {
		timestamps = make([]string, 0)
	}
	return timestamps, nil
}

// HeatmapSlice returns the points stored at exactly timestamp.
func (s *Store) HeatmapSlice(ctx context.Context, timestamp string) ([]series.HeatmapPoint, error) {
	ts, err := series.ParseHeatmapTimestamp(timestamp)
	if err != nil {
		s.logger.Error("load heatmap slice", zap.String("timestamp", timestamp), zap.Error(err))
		return nil, fmt.Errorf("load heatmap slice %s: %w", timestamp, err)
	}

	rows, err := s.pool.Query(ctx, heatmapSliceSQL, ts)
	if err != nil {
		s.logger.Error("load heatmap slice", zap.String("timestamp", timestamp), zap.Error(err))
		return nil, fmt.Errorf("load heatmap slice %s: %w", timestamp, err)
	}
	defer rows.Close()

	points := make([]series.HeatmapPoint, 0)
	for rows.Next() {
		var p series.HeatmapPoint
		var unit *string
		if err := rows.Scan(&p.MeterID, &p.ValueKw, &unit); err != nil {
			s.logger.Error("load heatmap slice", zap.String("timestamp", timestamp), zap.Error(err))
			return nil, fmt.Errorf("load heatmap slice %s: %w", timestamp, err)
		}
		p.Unit = series.DefaultUnit
		if unit != nil && *unit != "" {
			p.Unit = *unit
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("load heatmap slice", zap.String("timestamp", timestamp), zap.Error(err))
		return nil, fmt.Errorf("load heatmap slice %s: %w", timestamp, err)
	}
	return points, nil
}

func (s *Store) queryReadings(ctx context.Context, sql string, args []any) ([]series.Reading, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]series.Reading, 0)
	for rows.Next() {
		var r series.Reading
		if err := rows.Scan(
			&r.Start,
			&r.End,
			&r.PowerKw,
			&r.PowerOriginalKw,
			&r.EnergyKwh,
			&r.EnergyOriginalKwh,
			&r.ErrorCode,
		); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
