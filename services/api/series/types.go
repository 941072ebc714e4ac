package series

import "context"

const (
	// DefaultUnit is reported for heatmap points that carry no unit.
	DefaultUnit = "kW"

	// DefaultFileLimit caps single-meter reads served from CSV files.
	DefaultFileLimit = 500
	// DefaultQueryLimit caps relational and aggregated reads.
	DefaultQueryLimit = 2000
)

// Reading is one meter's measurement for a fixed interval. Start and End are
// local wall-clock timestamps without zone information.
type Reading struct {
	Start             string   `json:"start"`
	End               string   `json:"end"`
	PowerKw           *float64 `json:"powerKw"`
	PowerOriginalKw   *float64 `json:"powerOriginalKw"`
	EnergyKwh         *float64 `json:"energyKwh"`
	EnergyOriginalKwh *float64 `json:"energyOriginalKwh"`
	ErrorCode         *int64   `json:"errorCode"`
}

// HeatmapPoint is one meter's value at a heatmap timestamp.
type HeatmapPoint struct {
	MeterID string   `json:"meterId"`
	ValueKw *float64 `json:"valueKw"`
	Unit    string   `json:"unit"`
}

// Bounds holds the earliest start and latest end of a series. Empty strings
// mean no data.
type Bounds struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IsZero reports whether no data backed the bounds.
func (b Bounds) IsZero() bool {
	return b.Start == "" && b.End == ""
}

// Options constrains a series read. Start and End are inclusive; a zero
// Limit selects the backend default.
type Options struct {
	Start string
	End   string
	Limit int
}

// LimitOr returns the requested limit or def when none was given.
func (o Options) LimitOr(def int) int {
	if o.Limit > 0 {
		return o.Limit
	}
	return def
}

// Store reads interval data for single meters and heatmap slices.
//
// The file implementation never returns an error: missing or broken data
// degrades to empty results. The relational implementation returns every
// query failure.
type Store interface {
	MeterSeries(ctx context.Context, meterID string, opts Options) ([]Reading, error)
	MeterBounds(ctx context.Context, meterID string) (Bounds, error)
	HeatmapSlice(ctx context.Context, timestamp string) ([]HeatmapPoint, error)
	HeatmapTimestamps(ctx context.Context) ([]string, error)
}

// AggregatingStore is implemented by stores that can combine several meters
// in a single round trip.
type AggregatingStore interface {
	Store
	AggregatedSeries(ctx context.Context, meterIDs []string, opts Options) ([]Reading, error)
	AggregatedBounds(ctx context.Context, meterIDs []string) (Bounds, error)
}

// Cache keeps immutable heatmap results between requests.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}
