package series

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber reads a decimal that may use a comma as separator. Blank or
// unparseable input yields nil.
func ParseNumber(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// ParseCode reads an integral error code; fractional values are rejected.
func ParseCode(raw string) *int64 {
	v := ParseNumber(raw)
	if v == nil || *v != math.Trunc(*v) {
		return nil
	}
	code := int64(*v)
	return &code
}

// Sum adds two optional values: nil+nil is nil, nil counts as zero otherwise.
func Sum(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	default:
		v := *a + *b
		return &v
	}
}

// MaxCode keeps the larger of two optional error codes.
func MaxCode(a, b *int64) *int64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil || *a >= *b:
		v := *a
		return &v
	default:
		v := *b
		return &v
	}
}

// Decimate keeps every ceil(n/limit)-th reading starting at index 0 when the
// series is longer than limit. It is a plain stride, not a statistical
// resampling: peaks between kept rows are lost.
func Decimate(rows []Reading, limit int) []Reading {
	n := len(rows)
	if limit <= 0 || n <= limit {
		return rows
	}
	stride := (n + limit - 1) / limit
	out := make([]Reading, 0, (n+stride-1)/stride)
	for i := 0; i < n; i += stride {
		out = append(out, rows[i])
	}
	return out
}
