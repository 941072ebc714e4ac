package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/epowweb/gridview/services/api/series"
)

const upsertReadingSQL = `INSERT INTO meter_readings (meter_id, start_ts, end_ts, power_kw, power_original_kw, energy_kwh, energy_original_kwh, error_code)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (meter_id, start_ts) DO UPDATE
SET end_ts = EXCLUDED.end_ts,
    power_kw = EXCLUDED.power_kw,
    power_original_kw = EXCLUDED.power_original_kw,
    energy_kwh = EXCLUDED.energy_kwh,
    energy_original_kwh = EXCLUDED.energy_original_kwh,
    error_code = EXCLUDED.error_code`

const upsertHeatmapSQL = `INSERT INTO heatmap_points (ts, meter_id, value_kw, unit)
VALUES ($1,$2,$3,$4)
ON CONFLICT (ts, meter_id) DO UPDATE
SET value_kw = EXCLUDED.value_kw,
    unit = EXCLUDED.unit`

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertReadings writes one meter's readings in a single batch. Rows whose
// boundaries do not parse are skipped and counted.
func UpsertReadings(ctx context.Context, pool *pgxpool.Pool, meterID string, readings []series.Reading) (skipped int, err error) {
	if len(readings) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range readings {
		start, errStart := series.ParseTimestamp(r.Start)
		end, errEnd := series.ParseTimestamp(r.End)
		if errStart != nil || errEnd != nil {
			skipped++
			continue
		}
		batch.Queue(upsertReadingSQL, meterID, start, end,
			r.PowerKw, r.PowerOriginalKw, r.EnergyKwh, r.EnergyOriginalKwh, r.ErrorCode)
	}
	return skipped, sendBatch(ctx, pool, batch)
}

// UpsertHeatmap writes the points of one heatmap slice in a single batch.
func UpsertHeatmap(ctx context.Context, pool *pgxpool.Pool, ts time.Time, points []series.HeatmapPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(upsertHeatmapSQL, ts, p.MeterID, p.ValueKw, p.Unit)
	}
	return sendBatch(ctx, pool, batch)
}

func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}
	return nil
}
