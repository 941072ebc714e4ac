package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/epowweb/gridview/services/api/series"
)

const seriesTimeout = 15 * time.Second

// seriesQuery holds the validated start/end/limit query parameters.
type seriesQuery struct {
	start string
	end   string
	limit int
}

func parseSeriesQuery(c *gin.Context) (seriesQuery, error) {
	var q seriesQuery
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return q, fmt.Errorf("invalid limit: %s", limitStr)
		}
		q.limit = limit
	}
	if startStr := c.Query("start"); startStr != "" {
		t, err := series.ParseTimestamp(startStr)
		if err != nil {
			return q, fmt.Errorf("invalid start timestamp: %s", startStr)
		}
		q.start = series.FormatTimestamp(t)
	}
	if endStr := c.Query("end"); endStr != "" {
		t, err := series.ParseTimestamp(endStr)
		if err != nil {
			return q, fmt.Errorf("invalid end timestamp: %s", endStr)
		}
		q.end = series.FormatTimestamp(t)
	}
	return q, nil
}

// options fills in the default window: end falls back to bounds.End and
// start to end minus the configured number of days.
func (s *Server) options(q seriesQuery, bounds series.Bounds, defaultLimit int) series.Options {
	opts := series.Options{Start: q.start, End: q.end, Limit: q.limit}
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}
	if opts.End == "" {
		opts.End = bounds.End
	}
	if opts.Start == "" && bounds.End != "" {
		if end, err := series.ParseTimestamp(bounds.End); err == nil {
			opts.Start = series.FormatTimestamp(end.AddDate(0, 0, -s.cfg.DefaultDays))
		}
	}
	return opts
}

// GET /api/meters/:id/series?start=&end=&limit=
func (s *Server) handleMeterSeries(c *gin.Context) {
	meterID := c.Param("id")
	meter, ok := s.topo.Meter(meterID)
	if !ok {
		respondError(c, http.StatusNotFound, codeNotFound, fmt.Sprintf("meter '%s' not found", meterID))
		return
	}

	q, err := parseSeriesQuery(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), seriesTimeout)
	defer cancel()

	bounds, err := s.svc.MeterBounds(ctx, meterID)
	if err != nil {
		respondInternal(c, err, "failed to fetch meter bounds")
		return
	}

	// zero limit keeps the backend's own default
	readings, err := s.svc.MeterSeries(ctx, meterID, s.options(q, bounds, 0))
	if err != nil {
		respondInternal(c, err, "failed to fetch meter series")
		return
	}

	respondOK(c, gin.H{"meter": meter, "series": readings, "bounds": bounds}, len(readings))
}

// GET /api/buildings/:id/series?start=&end=&limit=
func (s *Server) handleBuildingSeries(c *gin.Context) {
	buildingID := c.Param("id")
	building, ok := s.topo.Building(buildingID)
	if !ok {
		respondError(c, http.StatusNotFound, codeNotFound, fmt.Sprintf("building '%s' not found", buildingID))
		return
	}
	s.aggregatedSeries(c, "building", building, building.Meters)
}

// GET /api/stations/:id/series?start=&end=&limit=
func (s *Server) handleStationSeries(c *gin.Context) {
	stationID := c.Param("id")
	station, ok := s.topo.Station(stationID)
	if !ok {
		respondError(c, http.StatusNotFound, codeNotFound, fmt.Sprintf("station '%s' not found", stationID))
		return
	}
	s.aggregatedSeries(c, "station", station, station.Meters)
}

func (s *Server) aggregatedSeries(c *gin.Context, kind string, meta any, meterIDs []string) {
	q, err := parseSeriesQuery(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), seriesTimeout)
	defer cancel()

	bounds, err := s.svc.AggregatedBounds(ctx, meterIDs)
	if err != nil {
		respondInternal(c, err, fmt.Sprintf("failed to fetch %s bounds", kind))
		return
	}

	readings, err := s.svc.AggregatedSeries(ctx, meterIDs, s.options(q, bounds, s.cfg.DefaultLimit))
	if err != nil {
		respondInternal(c, err, fmt.Sprintf("failed to fetch %s series", kind))
		return
	}

	respondOK(c, gin.H{kind: meta, "series": readings, "bounds": bounds}, len(readings))
}
