// Package preprocess turns a raw nanopore sample stream into the
// normalised, deduplicated level sequence the matcher consumes.
package preprocess

import "math"

// Stats records how far a query got through the pipeline.
type Stats struct {
	Raw     int // samples received
	Trimmed int // samples left after the front trim
	Events  int // detected events
	Deduped int // levels left after deduplication
}

// Run applies trim, event detection, normalisation and deduplication to
// raw. it returns the first querySize levels, or ok=false when either
// length gate rejects the query. the returned window never aliases raw.
func Run(raw []int32, querySize int, power float32, cfg Config) (window []float32, st Stats, ok bool) {
	st.Raw = len(raw)

	trimmed := TrimFront(raw, cfg.TrimFront, cfg.MinRemain)
	st.Trimmed = len(trimmed)

	events := DetectEvents(trimmed, cfg)
	st.Events = len(events)
	if len(events) < querySize {
		return nil, st, false
	}

	levels := make([]float32, len(events))
	for i, e := range events {
		levels[i] = float32(e.Mean)
	}
	levels = Dedup(Normalize(levels), power)
	st.Deduped = len(levels)
	if len(levels) < querySize {
		return nil, st, false
	}
	return levels[:querySize], st, true
}

// TrimFront drops up to n leading samples while keeping at least
// minRemain of them. inputs of minRemain samples or fewer pass through.
func TrimFront(xs []int32, n, minRemain int) []int32 {
	drop := len(xs) - minRemain
	if drop > n {
		drop = n
	}
	if drop <= 0 {
		return xs
	}
	return xs[drop:]
}

// Normalize returns the z-score of xs. a constant input maps to zeros.
func Normalize(xs []float32) []float32 {
	out := make([]float32, len(xs))
	if len(xs) == 0 {
		return out
	}
	var sum, sumsq float64
	for _, x := range xs {
		sum += float64(x)
		sumsq += float64(x) * float64(x)
	}
	n := float64(len(xs))
	mean := sum / n
	variance := sumsq/n - mean*mean
	if variance <= 0 {
		return out
	}
	sd := math.Sqrt(variance)
	for i, x := range xs {
		out[i] = float32((float64(x) - mean) / sd)
	}
	return out
}

// Dedup merges each run of consecutive values lying within power of the
// run's mean into that mean. power 0 keeps every value.
func Dedup(xs []float32, power float32) []float32 {
	out := make([]float32, 0, len(xs))
	if len(xs) == 0 {
		return out
	}
	sum, count := xs[0], float32(1)
	for _, x := range xs[1:] {
		mean := sum / count
		if d := x - mean; d < power && -d < power {
			sum += x
			count++
			continue
		}
		out = append(out, mean)
		sum, count = x, 1
	}
	return append(out, sum/count)
}
