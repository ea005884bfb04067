package dtw

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSignal(r *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(r.NormFloat64())
	}
	return out
}

// exhaustive aligns every pack without pruning or abandonment.
func exhaustive(query, ref []float32, dist Distance, numPacks int) float32 {
	best := float32(math.Inf(1))
	for _, p := range split(len(ref), len(query), numPacks) {
		score, _, _, _ := align(query, ref[p.start:p.end], dist, float32(math.Inf(1)))
		best = min(best, score)
	}
	return best
}

func TestHill(t *testing.T) {
	assert.Equal(t, float32(0), Hill(1, 1))
	assert.InDelta(t, 0.5, Hill(0, 1), 1e-6)
	assert.InDelta(t, 0.8, Hill(2, 0), 1e-6)
	assert.Less(t, Hill(0, 1000), float32(1))
	assert.Equal(t, Hill(3, -1), Hill(-1, 3))

	assert.Equal(t, float32(16), Squared(3, -1))
	assert.Equal(t, float32(0), Squared(2, 2))
}

func TestMatchExactCopy(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	ref := randomSignal(r, 2000)

	for _, offset := range []int{0, 731, 1950} {
		query := append([]float32(nil), ref[offset:offset+50]...)
		hit, _, err := Match(query, ref, Hill, 10, 3, 5)
		require.NoError(t, err)
		assert.InDelta(t, 0, hit.Score, 1e-6)
		assert.Equal(t, offset, hit.Start)
		assert.Equal(t, offset+49, hit.End)
	}
}

func TestMatchWarpedCopy(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	ref := randomSignal(r, 800)

	// every third sample repeated: a pure time warp costs nothing
	var query []float32
	for i := 400; len(query) < 60; i++ {
		query = append(query, ref[i])
		if i%3 == 0 {
			query = append(query, ref[i])
		}
	}
	hit, _, err := Match(query, ref, Hill, 5, 4, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0, hit.Score, 1e-6)
	assert.Equal(t, 400, hit.Start)
}

func TestMatchNoMatch(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	ref := randomSignal(r, 1000)
	query := randomSignal(r, 80)

	_, st, err := Match(query, ref, Hill, 10, 3, 0.5)
	assert.True(t, errors.Is(err, ErrNoMatch))
	assert.Equal(t, 3, st.Packs)
	assert.Equal(t, 0, st.Completed)
	assert.Equal(t, st.Packs, st.Pruned+st.Abandoned)
}

func TestMatchAgreesWithExhaustiveSearch(t *testing.T) {
	for _, tc := range []struct {
		name string
		dist Distance
	}{
		{"hill", Hill},
		{"squared", Squared},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := rand.New(rand.NewSource(4))
			for trial := 0; trial < 20; trial++ {
				ref := randomSignal(r, 300)
				query := randomSignal(r, 20)
				numPacks := 1 + trial%5
				want := exhaustive(query, ref, tc.dist, numPacks)

				// generous threshold: the pruned search must find the optimum
				hit, _, err := Match(query, ref, tc.dist, 4, numPacks, want+1)
				require.NoError(t, err)
				assert.InDelta(t, want, hit.Score, 1e-3, "trial %d", trial)

				// threshold below the optimum: nothing may be reported
				_, _, err = Match(query, ref, tc.dist, 4, numPacks, want*0.99)
				assert.ErrorIs(t, err, ErrNoMatch, "trial %d", trial)
			}
		})
	}
}

func TestMatchDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	ref := randomSignal(r, 500)
	query := randomSignal(r, 30)

	first, _, err1 := Match(query, ref, Hill, 7, 3, 100)
	second, _, err2 := Match(query, ref, Hill, 7, 3, 100)
	assert.Equal(t, err1, err2)
	assert.Equal(t, first, second)
}

func TestMatchDegenerateInputs(t *testing.T) {
	_, _, err := Match(nil, []float32{1, 2}, Hill, 1, 1, 10)
	assert.ErrorIs(t, err, ErrNoMatch)

	_, _, err = Match([]float32{1, 2, 3}, []float32{1, 2}, Hill, 1, 1, 10)
	assert.ErrorIs(t, err, ErrNoMatch)

	hit, _, err := Match([]float32{1, 2}, []float32{1, 2}, nil, 0, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, float32(0), hit.Score)

	// more packs than samples collapses to one pack per sample
	_, st, err := Match([]float32{5}, []float32{1, 5, 9}, Hill, 1, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Packs)
}

func TestSplitCoversReference(t *testing.T) {
	for _, tc := range []struct{ n, m, packs int }{
		{100, 10, 3}, {100, 10, 1}, {10, 10, 4}, {57, 5, 7},
	} {
		packs := split(tc.n, tc.m, tc.packs)
		require.NotEmpty(t, packs)
		assert.Equal(t, 0, packs[0].start)
		assert.Equal(t, tc.n, packs[len(packs)-1].end)
		for i, p := range packs {
			assert.GreaterOrEqual(t, p.end-p.start, tc.m)
			if i > 0 {
				// every window start belongs to some pack
				assert.LessOrEqual(t, p.start, packs[i-1].end-tc.m+1)
			}
		}
	}
}
