package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/epowweb/gridview/services/api/config"
	"github.com/epowweb/gridview/services/api/files"
	"github.com/epowweb/gridview/services/api/series"
	"github.com/epowweb/gridview/services/api/topology"
)

const testTopology = `<xml>
  <group name="ST-01" type="Station">
    <group name="B-101" type="Gebaeude">
      <meter name="M1"/>
      <meter name="M2"/>
    </group>
  </group>
  <group name="B-200" type="Gebaeude">
    <meter name="M3"/>
  </group>
</xml>`

const meterHeader = "Start;Ende;P_orig;P;E_orig;E;Fehler\n"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Count int `json:"count"`
	} `json:"meta"`
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

type seriesPayload struct {
	Series []series.Reading `json:"series"`
	Bounds series.Bounds    `json:"bounds"`
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	writeFixture(t, filepath.Join(dir, files.MeterDir, "M1.csv"), meterHeader+
		"2024-01-01 00:00:00;2024-01-01 00:15:00;1;1;0,25;0,25;0\n"+
		"2024-01-10 00:00:00;2024-01-10 00:15:00;10;10;2,5;2,5;0\n"+
		"2024-01-10 00:15:00;2024-01-10 00:30:00;12;12;3;3;0\n")
	writeFixture(t, filepath.Join(dir, files.MeterDir, "M2.csv"), meterHeader+
		"2024-01-10 00:00:00;2024-01-10 00:15:00;20;20;5;5;3\n"+
		"2024-01-10 00:15:00;2024-01-10 00:30:00;;;;;\n")
	writeFixture(t, filepath.Join(dir, files.HeatmapDir, "zw_20240110_000000.csv"), "0;M1;10;kW\n1;M2;20;kW\n2;M3;5;kW\n")
	writeFixture(t, filepath.Join(dir, files.HeatmapDir, "zw_20240110_001500.csv"), "0;M1;12;kW\n1;M2;;kW\n")
	writeFixture(t, filepath.Join(dir, files.HeatmapDir, "zw_20240110_003000.csv"), "0;M1;1;kW\n")

	topo, err := topology.Parse(strings.NewReader(testTopology))
	require.NoError(t, err)

	cfg := config.Config{DefaultLimit: 2000, DefaultDays: 7, AllowedOrigins: []string{"*"}}
	svc := series.NewService(files.New(dir, zap.NewNop()), nil, zap.NewNop())
	return New(cfg, svc, topo, "files", zap.NewNop())
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv.Engine(), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"files"}`, rec.Body.String())
}

func TestListTopology(t *testing.T) {
	srv := newTestServer(t)

	for path, count := range map[string]int{"/api/meters": 3, "/api/buildings": 2, "/api/stations": 1} {
		rec := get(t, srv.Engine(), path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		env := decode(t, rec)
		assert.True(t, env.Success)
		assert.Equal(t, count, env.Meta.Count, path)
	}
}

func TestMeterSeries_DefaultWindow(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv.Engine(), "/api/meters/M1/series")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload seriesPayload
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &payload))
	assert.Equal(t, series.Bounds{Start: "2024-01-01 00:00:00", End: "2024-01-10 00:30:00"}, payload.Bounds)
	// the 2024-01-01 row falls outside the 7 day window ending at bounds.end
	require.Len(t, payload.Series, 2)
	assert.Equal(t, "2024-01-10 00:00:00", payload.Series[0].Start)
}

func TestMeterSeries_ExplicitRange(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv.Engine(), "/api/meters/M1/series?start=2024-01-01T00:00:00&end=2024-01-10%2000:15:00")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload seriesPayload
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &payload))
	assert.Len(t, payload.Series, 2)
}

func TestMeterSeries_Errors(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv.Engine(), "/api/meters/NOPE/series")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, codeNotFound, env.Error.Code)

	for _, query := range []string{"limit=0", "limit=abc", "start=yesterday", "end=2024-13-01"} {
		rec := get(t, srv.Engine(), "/api/meters/M1/series?"+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Equal(t, codeBadRequest, decode(t, rec).Error.Code, query)
	}
}

func TestStationSeries_Aggregates(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv.Engine(), "/api/stations/ST-01/series")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload seriesPayload
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &payload))
	require.Len(t, payload.Series, 2)

	first := payload.Series[0]
	require.NotNil(t, first.PowerKw)
	assert.Equal(t, 30.0, *first.PowerKw)
	require.NotNil(t, first.ErrorCode)
	assert.Equal(t, int64(3), *first.ErrorCode)

	second := payload.Series[1]
	require.NotNil(t, second.PowerKw)
	assert.Equal(t, 12.0, *second.PowerKw)
}

func TestBuildingSeries_LimitAndNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv.Engine(), "/api/buildings/B-101/series?start=2024-01-01%2000:00:00&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var payload seriesPayload
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &payload))
	assert.NotEmpty(t, payload.Series)

	rec = get(t, srv.Engine(), "/api/buildings/B-999/series")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeatmapSlice(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv.Engine(), "/api/heatmap")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv.Engine(), "/api/heatmap?timestamp=2024-01-10%2000:00:00")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, 3, env.Meta.Count)

	// unknown slices are empty rather than errors on the file backend
	rec = get(t, srv.Engine(), "/api/heatmap?timestamp=1999-01-01%2000:00:00")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode(t, rec).Meta.Count)
}

func TestHeatmapAvailable(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv.Engine(), "/api/heatmap/available")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Timestamps []string `json:"timestamps"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Equal(t, []string{"2024-01-10 00:00:00", "2024-01-10 00:15:00", "2024-01-10 00:30:00"}, data.Timestamps)
}

func TestHeatmapStations(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv.Engine(), "/api/heatmap/stations")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv.Engine(), "/api/heatmap/stations?timestamp=20240110_000000")
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Stations []series.StationTotal `json:"stations"`
		Stats    heatmapStats          `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	require.Len(t, data.Stations, 1)
	assert.Equal(t, series.StationTotal{StationID: "ST-01", ValueKw: 30, Meters: 2}, data.Stations[0])
	assert.Equal(t, heatmapStats{Stations: 1, Meters: 3}, data.Stats)
}

func TestHeatmapInit(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv.Engine(), "/api/heatmap/init")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, heatmapInitCaching, rec.Header().Get("Cache-Control"))

	var data struct {
		Timestamps       []string              `json:"timestamps"`
		InitialTimestamp string                `json:"initialTimestamp"`
		Stations         []series.StationTotal `json:"stations"`
		Stats            heatmapStats          `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Len(t, data.Timestamps, 3)
	assert.Equal(t, "2024-01-10 00:15:00", data.InitialTimestamp)
	require.Len(t, data.Stations, 1)
	assert.Equal(t, 12.0, data.Stations[0].ValueKw)
	assert.Equal(t, 2, data.Stations[0].Meters)
}

func TestHeatmapInit_Empty(t *testing.T) {
	cfg := config.Config{DefaultLimit: 2000, DefaultDays: 7}
	svc := series.NewService(files.New(t.TempDir(), zap.NewNop()), nil, zap.NewNop())
	srv := New(cfg, svc, nil, "files", nil)

	rec := get(t, srv.Engine(), "/api/heatmap/init")
	require.Equal(t, http.StatusOK, rec.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Nil(t, data["initialTimestamp"])
	assert.Equal(t, []any{}, data["timestamps"])
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv.Engine(), "/healthz")
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestHandler_CORS(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stations", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
