package files

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/epowweb/gridview/services/api/series"
)

// minMeterFields is the shortest meter row kept: start through energyKwh.
const minMeterFields = 6

// maxLineSize bounds a single line of an export.
const maxLineSize = 1 << 20

// scanLines calls fn with the ;-separated, trimmed fields of every non-blank
// line. Fields are never quoted, so a damaged line cannot spill into the
// next one.
func scanLines(r io.Reader, fn func(fields []string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		fn(fields)
	}
	return sc.Err()
}

// ParseMeterCSV reads a meter export. The first non-blank line is a header;
// each data row is start;end;powerOriginalKw;powerKw;energyOriginalKwh;energyKwh;errorCode.
// Rows with fewer than six fields are dropped.
func ParseMeterCSV(r io.Reader) ([]series.Reading, error) {
	rows := make([]series.Reading, 0)
	header := true
	err := scanLines(r, func(fields []string) {
		if header {
			header = false
			return
		}
		if reading, ok := parseMeterRecord(fields); ok {
			rows = append(rows, reading)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse meter csv: %w", err)
	}
	return rows, nil
}

func parseMeterRecord(fields []string) (series.Reading, bool) {
	if len(fields) < minMeterFields {
		return series.Reading{}, false
	}
	field := func(i int) string {
		if i >= len(fields) {
			return ""
		}
		return fields[i]
	}
	return series.Reading{
		Start:             field(0),
		End:               field(1),
		PowerOriginalKw:   series.ParseNumber(field(2)),
		PowerKw:           series.ParseNumber(field(3)),
		EnergyOriginalKwh: series.ParseNumber(field(4)),
		EnergyKwh:         series.ParseNumber(field(5)),
		ErrorCode:         series.ParseCode(field(6)),
	}, true
}

// ParseHeatmapCSV reads a heatmap slice with rows index;meterId;valueKw;unit.
// There is no header. A missing unit reads as kW.
func ParseHeatmapCSV(r io.Reader) ([]series.HeatmapPoint, error) {
	points := make([]series.HeatmapPoint, 0)
	err := scanLines(r, func(fields []string) {
		if len(fields) < 2 {
			return
		}
		point := series.HeatmapPoint{
			MeterID: fields[1],
			Unit:    series.DefaultUnit,
		}
		if len(fields) > 2 {
			point.ValueKw = series.ParseNumber(fields[2])
		}
		if len(fields) > 3 && fields[3] != "" {
			point.Unit = fields[3]
		}
		points = append(points, point)
	})
	if err != nil {
		return nil, fmt.Errorf("parse heatmap csv: %w", err)
	}
	return points, nil
}

func readMeterFile(path string) ([]series.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseMeterCSV(f)
}

func readHeatmapFile(path string) ([]series.HeatmapPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseHeatmapCSV(f)
}
