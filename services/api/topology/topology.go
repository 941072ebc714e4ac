// Package topology loads the campus grid layout: stations contain buildings,
// buildings contain meters. The layout is read once from the SMDT XML
// configuration and is immutable afterwards.
package topology

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	groupStation  = "Station"
	groupBuilding = "Gebaeude"
)

// Meter is one metering point and the building and station it feeds.
type Meter struct {
	ID            string   `json:"id"`
	StationID     string   `json:"stationId,omitempty"`
	BuildingID    string   `json:"buildingId,omitempty"`
	Wandlerfaktor *float64 `json:"wandlerfaktor,omitempty"`
	Aggregate     *bool    `json:"aggregate,omitempty"`
	StdID         *float64 `json:"stdId,omitempty"`
	AKS           string   `json:"aks,omitempty"`
	Label         string   `json:"label,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// Building groups the meters of one Gebaeude group.
type Building struct {
	ID        string   `json:"id"`
	StationID string   `json:"stationId,omitempty"`
	Meters    []string `json:"meters"`
}

// Station lists every meter and building below one Station group.
type Station struct {
	ID        string   `json:"id"`
	Meters    []string `json:"meters"`
	Buildings []string `json:"buildings"`
}

// Index holds the parsed layout with id lookups. The zero value is not
// usable; build one with Parse, Load or Empty.
type Index struct {
	Meters    []Meter
	Buildings []Building
	Stations  []Station

	meters    map[string]int
	buildings map[string]int
	stations  map[string]int
}

// Empty returns an index without any entries.
func Empty() *Index {
	return newIndex(nil, nil, nil)
}

func newIndex(meters []Meter, buildings []Building, stations []Station) *Index {
	idx := &Index{
		Meters:    nonNil(meters),
		Buildings: nonNil(buildings),
		Stations:  nonNil(stations),
		meters:    make(map[string]int, len(meters)),
		buildings: make(map[string]int, len(buildings)),
		stations:  make(map[string]int, len(stations)),
	}
	// first occurrence wins for duplicated ids
	for i, m := range idx.Meters {
		if _, ok := idx.meters[m.ID]; !ok {
			idx.meters[m.ID] = i
		}
	}
	for i, b := range idx.Buildings {
		if _, ok := idx.buildings[b.ID]; !ok {
			idx.buildings[b.ID] = i
		}
	}
	for i, s := range idx.Stations {
		if _, ok := idx.stations[s.ID]; !ok {
			idx.stations[s.ID] = i
		}
	}
	return idx
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return make([]T, 0)
	}
	return s
}

// Meter looks up a meter by id.
func (idx *Index) Meter(id string) (Meter, bool) {
	i, ok := idx.meters[id]
	if !ok {
		return Meter{}, false
	}
	return idx.Meters[i], true
}

// Building looks up a building by id.
func (idx *Index) Building(id string) (Building, bool) {
	i, ok := idx.buildings[id]
	if !ok {
		return Building{}, false
	}
	return idx.Buildings[i], true
}

// Station looks up a station by id.
func (idx *Index) Station(id string) (Station, bool) {
	i, ok := idx.stations[id]
	if !ok {
		return Station{}, false
	}
	return idx.Stations[i], true
}

// StationOf returns the station a meter belongs to. Meters outside any
// station report false.
func (idx *Index) StationOf(meterID string) (string, bool) {
	m, ok := idx.Meter(meterID)
	if !ok || m.StationID == "" {
		return "", false
	}
	return m.StationID, true
}

// Load parses the configuration at path. A missing or malformed file is
// logged and yields an empty index.
func Load(path string, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("topology")

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("config file not found, using empty topology", zap.String("path", path))
		} else {
			logger.Error("open config file", zap.String("path", path), zap.Error(err))
		}
		return Empty()
	}
	defer f.Close()

	idx, err := Parse(f)
	if err != nil {
		logger.Error("parse config file", zap.String("path", path), zap.Error(err))
		return Empty()
	}

	logger.Info("topology loaded",
		zap.String("path", path),
		zap.Int("meters", len(idx.Meters)),
		zap.Int("buildings", len(idx.Buildings)),
		zap.Int("stations", len(idx.Stations)),
	)
	return idx
}

// Parse reads the XML layout. The document root is either a wrapper element
// holding top-level groups or a single group. Group and meter fields are
// accepted both as attributes and as child elements.
func Parse(r io.Reader) (*Index, error) {
	var root xmlGroup
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}

	w := &walker{}
	if root.XMLName.Local == "group" {
		w.walk(root, "")
	} else {
		for _, g := range root.Groups {
			w.walk(g, "")
		}
	}
	return newIndex(w.meters, w.buildings, w.stations), nil
}

type xmlMeter struct {
	NameAttr      string `xml:"name,attr"`
	Name          string `xml:"name"`
	FactorAttr    string `xml:"wandlerfaktor,attr"`
	Factor        string `xml:"wandlerfaktor"`
	AggregateAttr string `xml:"aggregate,attr"`
	Aggregate     string `xml:"aggregate"`
	StdIDAttr     string `xml:"StdId,attr"`
	StdID         string `xml:"StdId"`
	AKSAttr       string `xml:"AKS,attr"`
	AKS           string `xml:"AKS"`
	LabelAttr     string `xml:"Messstellenbezeichnung,attr"`
	Label         string `xml:"Messstellenbezeichnung"`
	CommentAttr   string `xml:"Kommentar,attr"`
	Comment       string `xml:"Kommentar"`
}

type xmlGroup struct {
	XMLName  xml.Name
	NameAttr string     `xml:"name,attr"`
	Name     string     `xml:"name"`
	TypeAttr string     `xml:"type,attr"`
	Type     string     `xml:"type"`
	Groups   []xmlGroup `xml:"group"`
	Meters   []xmlMeter `xml:"meter"`
}

type walker struct {
	meters    []Meter
	buildings []Building
	stations  []Station
}

// walk returns the meter and building ids found below g.
func (w *walker) walk(g xmlGroup, stationID string) ([]string, []string) {
	name := pick(g.NameAttr, g.Name)

	switch pick(g.TypeAttr, g.Type) {
	case groupStation:
		meterIDs, buildingIDs := w.walkChildren(g.Groups, name)
		w.stations = append(w.stations, Station{ID: name, Meters: meterIDs, Buildings: buildingIDs})
		return meterIDs, buildingIDs

	case groupBuilding:
		meterIDs := make([]string, 0, len(g.Meters))
		for _, xm := range g.Meters {
			m := xm.toMeter()
			m.StationID = stationID
			m.BuildingID = name
			w.meters = append(w.meters, m)
			meterIDs = append(meterIDs, m.ID)
		}
		w.buildings = append(w.buildings, Building{ID: name, StationID: stationID, Meters: meterIDs})
		return meterIDs, []string{name}

	default:
		return w.walkChildren(g.Groups, stationID)
	}
}

func (w *walker) walkChildren(groups []xmlGroup, stationID string) ([]string, []string) {
	meterIDs := make([]string, 0)
	buildingIDs := make([]string, 0)
	for _, child := range groups {
		m, b := w.walk(child, stationID)
		meterIDs = append(meterIDs, m...)
		buildingIDs = append(buildingIDs, b...)
	}
	return meterIDs, buildingIDs
}

func (xm xmlMeter) toMeter() Meter {
	return Meter{
		ID:            pick(xm.NameAttr, xm.Name),
		Wandlerfaktor: asNumber(pick(xm.FactorAttr, xm.Factor)),
		Aggregate:     asBool(pick(xm.AggregateAttr, xm.Aggregate)),
		StdID:         asNumber(pick(xm.StdIDAttr, xm.StdID)),
		AKS:           pick(xm.AKSAttr, xm.AKS),
		Label:         pick(xm.LabelAttr, xm.Label),
		Notes:         pick(xm.CommentAttr, xm.Comment),
	}
}

func pick(attr, elem string) string {
	if v := strings.TrimSpace(attr); v != "" {
		return v
	}
	return strings.TrimSpace(elem)
}

func asNumber(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func asBool(raw string) *bool {
	if raw == "" {
		return nil
	}
	v := strings.EqualFold(raw, "true") || raw == "1"
	return &v
}
