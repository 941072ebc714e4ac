package series

import "sort"

type intervalKey struct {
	start string
	end   string
}

// Merge sums readings that share identical (start, end) boundaries. The first
// reading seen for an interval seeds the bucket; later ones add power and
// energy with Sum and keep the highest error code. The result is ordered by
// start time.
func Merge(seriesList [][]Reading) []Reading {
	buckets := make(map[intervalKey]*Reading)
	order := make([]intervalKey, 0)

	for _, rows := range seriesList {
		for _, row := range rows {
			key := intervalKey{start: row.Start, end: row.End}
			existing, ok := buckets[key]
			if !ok {
				seed := row
				buckets[key] = &seed
				order = append(order, key)
				continue
			}
			existing.PowerKw = Sum(existing.PowerKw, row.PowerKw)
			existing.PowerOriginalKw = Sum(existing.PowerOriginalKw, row.PowerOriginalKw)
			existing.EnergyKwh = Sum(existing.EnergyKwh, row.EnergyKwh)
			existing.EnergyOriginalKwh = Sum(existing.EnergyOriginalKwh, row.EnergyOriginalKwh)
			existing.ErrorCode = MaxCode(existing.ErrorCode, row.ErrorCode)
		}
	}

	out := make([]Reading, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareTimestamps(out[i].Start, out[j].Start) < 0
	})
	return out
}

// FoldBounds widens acc so it also covers b. Empty sides are ignored.
func FoldBounds(acc, b Bounds) Bounds {
	if b.Start != "" && (acc.Start == "" || compareTimestamps(b.Start, acc.Start) < 0) {
		acc.Start = b.Start
	}
	if b.End != "" && (acc.End == "" || compareTimestamps(b.End, acc.End) > 0) {
		acc.End = b.End
	}
	return acc
}
