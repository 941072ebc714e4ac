package db

// Schema creates the tables read by Store. Both tables are keyed so that a
// meter has at most one reading per start and one heatmap point per ts.
const Schema = `
CREATE TABLE IF NOT EXISTS meter_readings (
    id BIGSERIAL PRIMARY KEY,
    meter_id TEXT NOT NULL,
    start_ts TIMESTAMP WITHOUT TIME ZONE NOT NULL,
    end_ts TIMESTAMP WITHOUT TIME ZONE NOT NULL,
    power_kw DOUBLE PRECISION NULL,
    power_original_kw DOUBLE PRECISION NULL,
    energy_kwh DOUBLE PRECISION NULL,
    energy_original_kwh DOUBLE PRECISION NULL,
    error_code INTEGER NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_meter_readings_meter_start ON meter_readings (meter_id, start_ts);

CREATE TABLE IF NOT EXISTS heatmap_points (
    id BIGSERIAL PRIMARY KEY,
    ts TIMESTAMP WITHOUT TIME ZONE NOT NULL,
    meter_id TEXT NOT NULL,
    value_kw DOUBLE PRECISION NULL,
    unit TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_heatmap_ts ON heatmap_points (ts);
CREATE UNIQUE INDEX IF NOT EXISTS ux_heatmap_ts_meter ON heatmap_points (ts, meter_id);
`
