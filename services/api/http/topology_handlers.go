package http

import (
	"github.com/gin-gonic/gin"
)

// GET /api/meters
func (s *Server) handleListMeters(c *gin.Context) {
	respondOK(c, s.topo.Meters, len(s.topo.Meters))
}

// GET /api/buildings
func (s *Server) handleListBuildings(c *gin.Context) {
	respondOK(c, s.topo.Buildings, len(s.topo.Buildings))
}

// GET /api/stations
func (s *Server) handleListStations(c *gin.Context) {
	respondOK(c, s.topo.Stations, len(s.topo.Stations))
}
