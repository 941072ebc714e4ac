package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	heatmapTimeout     = 10 * time.Second
	heatmapInitCaching = "public, s-maxage=60, stale-while-revalidate=300"
)

type heatmapStats struct {
	Stations int `json:"stations"`
	Meters   int `json:"meters"`
}

// GET /api/heatmap?timestamp=
func (s *Server) handleHeatmapSlice(c *gin.Context) {
	timestamp := c.Query("timestamp")
	if timestamp == "" {
		respondError(c, http.StatusBadRequest, codeBadRequest, "timestamp is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), heatmapTimeout)
	defer cancel()

	points, err := s.svc.HeatmapSlice(ctx, timestamp)
	if err != nil {
		respondInternal(c, err, "failed to fetch heatmap slice")
		return
	}

	respondOK(c, gin.H{"timestamp": timestamp, "points": points}, len(points))
}

// GET /api/heatmap/available
func (s *Server) handleHeatmapAvailable(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), heatmapTimeout)
	defer cancel()

	timestamps, err := s.svc.HeatmapTimestamps(ctx)
	if err != nil {
		respondInternal(c, err, "failed to list heatmap timestamps")
		return
	}

	respondOK(c, gin.H{"timestamps": timestamps}, len(timestamps))
}

// GET /api/heatmap/stations?timestamp=
func (s *Server) handleHeatmapStations(c *gin.Context) {
	timestamp := c.Query("timestamp")
	if timestamp == "" {
		respondError(c, http.StatusBadRequest, codeBadRequest, "timestamp is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), heatmapTimeout)
	defer cancel()

	totals, meters, err := s.svc.HeatmapStationTotals(ctx, timestamp, s.topo.StationOf)
	if err != nil {
		respondInternal(c, err, "failed to aggregate heatmap by station")
		return
	}

	respondOK(c, gin.H{
		"timestamp": timestamp,
		"stations":  totals,
		"stats":     heatmapStats{Stations: len(totals), Meters: meters},
	}, len(totals))
}

// GET /api/heatmap/init
//
// Returns the catalog together with station totals for the middle timestamp,
// so a client can render its first frame with one request.
func (s *Server) handleHeatmapInit(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), heatmapTimeout)
	defer cancel()

	timestamps, err := s.svc.HeatmapTimestamps(ctx)
	if err != nil {
		respondInternal(c, err, "failed to initialize heatmap data")
		return
	}

	data := gin.H{
		"timestamps":       timestamps,
		"initialTimestamp": nil,
		"stations":         nil,
		"stats":            nil,
	}

	if len(timestamps) > 0 {
		initial := timestamps[len(timestamps)/2]
		totals, meters, err := s.svc.HeatmapStationTotals(ctx, initial, s.topo.StationOf)
		if err != nil {
			respondInternal(c, err, "failed to initialize heatmap data")
			return
		}
		data["initialTimestamp"] = initial
		data["stations"] = totals
		data["stats"] = heatmapStats{Stations: len(totals), Meters: meters}
	}

	c.Header("Cache-Control", heatmapInitCaching)
	respondOK(c, data, len(timestamps))
}
