package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/epowweb/gridview/services/api/config"
	"github.com/epowweb/gridview/services/api/series"
	"github.com/epowweb/gridview/services/api/topology"
)

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg     config.Config
	svc     *series.Service
	topo    *topology.Index
	backend string
	logger  *zap.Logger
	engine  *gin.Engine
}

// New constructs a server with routes and middleware. backend names the
// storage backend in use and is reported by /healthz.
func New(cfg config.Config, svc *series.Service, topo *topology.Index, backend string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topo == nil {
		topo = topology.Empty()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger.Named("http")))

	server := &Server{
		cfg:     cfg,
		svc:     svc,
		topo:    topo,
		backend: backend,
		logger:  logger.Named("http"),
		engine:  engine,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Handler returns the engine wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(s.engine)
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": s.backend})
	})

	api := s.engine.Group("/api")
	{
		api.GET("/meters", s.handleListMeters)
		api.GET("/meters/:id/series", s.handleMeterSeries)
		api.GET("/buildings", s.handleListBuildings)
		api.GET("/buildings/:id/series", s.handleBuildingSeries)
		api.GET("/stations", s.handleListStations)
		api.GET("/stations/:id/series", s.handleStationSeries)
	}

	heatmap := api.Group("/heatmap")
	{
		heatmap.GET("", s.handleHeatmapSlice)
		heatmap.GET("/available", s.handleHeatmapAvailable)
		heatmap.GET("/stations", s.handleHeatmapStations)
		heatmap.GET("/init", s.handleHeatmapInit)
	}
}
