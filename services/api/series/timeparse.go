package series

import (
	"fmt"
	"strings"
	"time"
)

const (
	// TimestampLayout is the canonical wall-clock form emitted by both backends.
	TimestampLayout = "2006-01-02 15:04:05"
	// CompactLayout names heatmap slice files (zw_<compact>.csv).
	CompactLayout = "20060102_150405"
)

// layouts accepted for user supplied and stored timestamps, most common first.
var layouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006/01/02 15:04:05",
}

// ParseTimestamp parses a general date-time. Values are treated as wall-clock
// time; zoned inputs are converted to UTC before their zone is dropped.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// ParseHeatmapTimestamp accepts a general date-time and falls back to the
// compact file name form.
func ParseHeatmapTimestamp(raw string) (time.Time, error) {
	if t, err := ParseTimestamp(raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(CompactLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized heatmap timestamp %q", raw)
	}
	return t, nil
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// compareTimestamps orders two stored timestamps, parsing them when possible
// and falling back to string order otherwise.
func compareTimestamps(a, b string) int {
	ta, errA := ParseTimestamp(a)
	tb, errB := ParseTimestamp(b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}
