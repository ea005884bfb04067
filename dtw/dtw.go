// Package dtw implements the scouting-threshold subsequence DTW used to
// decide whether a short query window occurs anywhere in a long reference.
//
// The reference is split into packs. Cheap lock-step scouts bound each
// pack's score from above, an envelope bound limits it from below, and
// full alignment runs only on packs that may still beat the running
// cutoff, abandoning as soon as every cell of a DP row exceeds it.
package dtw

import (
	"math"
	"sort"

	"github.com/mdobak/go-xerrors"
)

// ErrNoMatch means no candidate aligned under the threshold. it is the
// expected outcome for most reads.
var ErrNoMatch = xerrors.Message("dtw: no match under threshold")

// Distance is the per-sample alignment cost.
type Distance func(x, y float32) float32

// Hill is the saturating squared distance d²/(1+d²). every pair costs
// less than one, so a single spike cannot dominate an alignment.
func Hill(x, y float32) float32 {
	d := (x - y) * (x - y)
	return d / (1 + d)
}

// Squared is plain squared error.
func Squared(x, y float32) float32 {
	return (x - y) * (x - y)
}

// Hit describes the best alignment found.
type Hit struct {
	Score float32
	Start int // reference index aligned to the first query sample
	End   int // reference index aligned to the last query sample
	Pack  int
}

// Stats counts the work a Match call did.
type Stats struct {
	Packs     int
	Pruned    int // skipped on the envelope bound
	Abandoned int // alignments stopped early
	Completed int
}

type pack struct {
	index      int
	start, end int // reference slice [start, end)
	scout      float32
}

// Match aligns query against reference. numScouts and numPacks below one
// are treated as one. it returns ErrNoMatch when nothing scores at or
// below threshold.
func Match(query, reference []float32, dist Distance, numScouts, numPacks int, threshold float32) (Hit, Stats, error) {
	var st Stats
	m, n := len(query), len(reference)
	if m == 0 || n < m {
		return Hit{}, st, ErrNoMatch
	}
	if dist == nil {
		dist = Hill
	}
	numScouts = max(numScouts, 1)
	numPacks = min(max(numPacks, 1), n)

	packs := split(n, m, numPacks)
	st.Packs = len(packs)

	cutoff := threshold
	for i := range packs {
		p := &packs[i]
		p.scout = scout(query, reference[p.start:p.end], dist, numScouts)
		if p.scout < cutoff {
			cutoff = p.scout
		}
	}
	sort.SliceStable(packs, func(i, j int) bool { return packs[i].scout < packs[j].scout })

	best := Hit{Score: float32(math.Inf(1))}
	found := false
	for _, p := range packs {
		ref := reference[p.start:p.end]
		if envelope(query, ref, dist) > cutoff {
			st.Pruned++
			continue
		}
		score, start, end, ok := align(query, ref, dist, cutoff)
		if !ok {
			st.Abandoned++
			continue
		}
		st.Completed++
		if score < best.Score {
			best = Hit{Score: score, Start: p.start + start, End: p.start + end, Pack: p.index}
			found = true
			if score < cutoff {
				cutoff = score
			}
		}
	}
	if !found {
		return Hit{}, st, ErrNoMatch
	}
	return best, st, nil
}

// split partitions [0,n) into num contiguous packs, each extended by m-1
// so an alignment that starts near a pack edge is not cut off.
func split(n, m, num int) []pack {
	size := (n + num - 1) / num
	packs := make([]pack, 0, num)
	for i := 0; i < num; i++ {
		start := i * size
		if start >= n {
			break
		}
		end := min(start+size+m-1, n)
		if end-start < m {
			start = end - m
		}
		packs = append(packs, pack{index: i, start: start, end: end})
	}
	return packs
}

// scout returns the cheapest of count evenly spaced diagonal alignments.
// any diagonal is a legal warping path, so this bounds the pack's DTW
// score from above.
func scout(query, ref []float32, dist Distance, count int) float32 {
	m := len(query)
	span := len(ref) - m
	best := float32(math.Inf(1))
	for s := 0; s < count; s++ {
		off := 0
		if count > 1 {
			off = s * span / (count - 1)
		}
		var cost float32
		for i, q := range query {
			cost += dist(q, ref[off+i])
			if cost >= best {
				break
			}
		}
		if cost < best {
			best = cost
		}
		if span == 0 {
			break
		}
	}
	return best
}

// envelope bounds the pack's DTW score from below: every query sample is
// matched to some reference sample, which lies within [lo, hi]. dist must
// grow with |x-y| for the bound to hold.
func envelope(query, ref []float32, dist Distance) float32 {
	lo, hi := ref[0], ref[0]
	for _, r := range ref[1:] {
		lo = min(lo, r)
		hi = max(hi, r)
	}
	var lb float32
	for _, q := range query {
		switch {
		case q < lo:
			lb += dist(q, lo)
		case q > hi:
			lb += dist(q, hi)
		}
	}
	return lb
}

// align runs subsequence DTW (free start and end in ref) with early
// abandonment at cutoff. ok is false when the alignment was abandoned or
// finished above cutoff.
func align(query, ref []float32, dist Distance, cutoff float32) (score float32, start, end int, ok bool) {
	n := len(ref)
	prev := make([]float32, n)
	cur := make([]float32, n)
	prevStart := make([]int, n)
	curStart := make([]int, n)

	rowMin := float32(math.Inf(1))
	for j := 0; j < n; j++ {
		prev[j] = dist(query[0], ref[j])
		prevStart[j] = j
		rowMin = min(rowMin, prev[j])
	}
	if rowMin > cutoff {
		return 0, 0, 0, false
	}

	for i := 1; i < len(query); i++ {
		q := query[i]
		// reference index 0 can only be reached vertically
		cur[0] = prev[0] + dist(q, ref[0])
		curStart[0] = prevStart[0]
		rowMin = cur[0]
		for j := 1; j < n; j++ {
			c, s := prev[j-1], prevStart[j-1]
			if prev[j] < c {
				c, s = prev[j], prevStart[j]
			}
			if cur[j-1] < c {
				c, s = cur[j-1], curStart[j-1]
			}
			cur[j] = c + dist(q, ref[j])
			curStart[j] = s
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > cutoff {
			return 0, 0, 0, false
		}
		prev, cur = cur, prev
		prevStart, curStart = curStart, prevStart
	}

	score = float32(math.Inf(1))
	for j := 0; j < n; j++ {
		if prev[j] < score {
			score, start, end = prev[j], prevStart[j], j
		}
	}
	if score > cutoff {
		return 0, 0, 0, false
	}
	return score, start, end, true
}
