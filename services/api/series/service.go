package series

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	timestampsCacheKey = "heatmap:timestamps"
	sliceCacheKey      = "heatmap:slice:"

	// fanOut bounds concurrent per-meter reads when aggregating in process.
	fanOut = 8
)

// Service combines per-meter series for buildings and stations and serves
// heatmap data. Aggregation is pushed down when the store supports it.
type Service struct {
	store  Store
	cache  Cache
	logger *zap.Logger
}

// NewService wires a Service around store. cache may be nil.
func NewService(store Store, cache Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, cache: cache, logger: logger.Named("series")}
}

// MeterSeries returns one meter's readings.
func (s *Service) MeterSeries(ctx context.Context, meterID string, opts Options) ([]Reading, error) {
	return s.store.MeterSeries(ctx, meterID, opts)
}

// MeterBounds returns one meter's time bounds.
func (s *Service) MeterBounds(ctx context.Context, meterID string) (Bounds, error) {
	return s.store.MeterBounds(ctx, meterID)
}

// AggregatedSeries returns the summed series of meterIDs keyed by interval.
func (s *Service) AggregatedSeries(ctx context.Context, meterIDs []string, opts Options) ([]Reading, error) {
	if len(meterIDs) == 0 {
		return []Reading{}, nil
	}
	if agg, ok := s.store.(AggregatingStore); ok {
		return agg.AggregatedSeries(ctx, meterIDs, opts)
	}

	results := make([][]Reading, len(meterIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, id := range meterIDs {
		g.Go(func() error {
			rows, err := s.store.MeterSeries(gctx, id, opts)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(results), nil
}

// AggregatedBounds returns the combined bounds of meterIDs. An empty set
// yields empty bounds without touching the store.
func (s *Service) AggregatedBounds(ctx context.Context, meterIDs []string) (Bounds, error) {
	if len(meterIDs) == 0 {
		return Bounds{}, nil
	}
	if agg, ok := s.store.(AggregatingStore); ok {
		return agg.AggregatedBounds(ctx, meterIDs)
	}

	var acc Bounds
	for _, id := range meterIDs {
		b, err := s.store.MeterBounds(ctx, id)
		if err != nil {
			return Bounds{}, err
		}
		acc = FoldBounds(acc, b)
	}
	return acc, nil
}

// HeatmapTimestamps lists every heatmap timestamp in ascending order.
func (s *Service) HeatmapTimestamps(ctx context.Context) ([]string, error) {
	var cached []string
	if s.cacheGet(ctx, timestampsCacheKey, &cached) {
		return cached, nil
	}
	timestamps, err := s.store.HeatmapTimestamps(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, timestampsCacheKey, timestamps)
	return timestamps, nil
}

// HeatmapSlice returns every point recorded at timestamp.
func (s *Service) HeatmapSlice(ctx context.Context, timestamp string) ([]HeatmapPoint, error) {
	key := sliceCacheKey + timestamp
	if t, err := ParseHeatmapTimestamp(timestamp); err == nil {
		key = sliceCacheKey + t.Format(CompactLayout)
	}

	var cached []HeatmapPoint
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	points, err := s.store.HeatmapSlice(ctx, timestamp)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, points)
	return points, nil
}

// StationTotal is the summed heatmap value of one station's meters.
type StationTotal struct {
	StationID string  `json:"stationId"`
	ValueKw   float64 `json:"valueKw"`
	Meters    int     `json:"meters"`
}

// StationLookup resolves the station a meter belongs to.
type StationLookup func(meterID string) (stationID string, ok bool)

// HeatmapStationTotals sums the slice at timestamp per station. Points whose
// meter has no station are skipped; missing values count as zero. The second
// return value is the number of points in the slice.
func (s *Service) HeatmapStationTotals(ctx context.Context, timestamp string, lookup StationLookup) ([]StationTotal, int, error) {
	points, err := s.HeatmapSlice(ctx, timestamp)
	if err != nil {
		return nil, 0, err
	}

	byStation := make(map[string]*StationTotal)
	for _, p := range points {
		stationID, ok := lookup(p.MeterID)
		if !ok || stationID == "" {
			continue
		}
		total, ok := byStation[stationID]
		if !ok {
			total = &StationTotal{StationID: stationID}
			byStation[stationID] = total
		}
		if p.ValueKw != nil {
			total.ValueKw += *p.ValueKw
		}
		total.Meters++
	}

	out := make([]StationTotal, 0, len(byStation))
	for _, total := range byStation {
		out = append(out, *total)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out, len(points), nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
