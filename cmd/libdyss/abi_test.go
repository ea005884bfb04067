package main

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"unsafe"

	"dyss/boundary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandle(t *testing.T) boundary.Handle {
	t.Helper()
	dir := t.TempDir()
	ref := filepath.Join(dir, "reference.fa")
	model := filepath.Join(dir, "template.model")
	params := filepath.Join(dir, "parameters.csv")

	var m strings.Builder
	m.WriteString("kmer\tlevel_mean\n")
	level := 70.0
	for _, a := range "ACGT" {
		for _, b := range "ACGT" {
			m.WriteString(string(a) + string(b) + "\t" + strconv.FormatFloat(level, 'f', 2, 64) + "\n")
			level += 4.25
		}
	}
	r := rand.New(rand.NewSource(5))
	seq := make([]byte, 600)
	for i := range seq {
		seq[i] = "ACGT"[r.Intn(4)]
	}

	require.NoError(t, os.WriteFile(model, []byte(m.String()), 0o644))
	require.NoError(t, os.WriteFile(ref, []byte(">target\n"+string(seq)+"\n"), 0o644))
	require.NoError(t, os.WriteFile(params, []byte("refsize,power,packs,scouts,threshold,specificity\n2,9,3,14,6.5,0.95\n"), 0o644))

	h := boundary.Construct(14, 3, ref, model, params, 9, 20, 2000)
	require.True(t, boundary.Live(h))
	t.Cleanup(func() { boundary.Destroy(h) })
	return h
}

func read(seed int64, levels int) []int32 {
	r := rand.New(rand.NewSource(seed))
	out := make([]int32, 0, levels*12)
	for range levels {
		l := int32(300 + r.Intn(400))
		for range 12 {
			out = append(out, l)
		}
	}
	return out
}

// cArrays lays queries out the way a C caller passes them.
func cArrays(queries [][]int32) ([]unsafe.Pointer, []uintptr) {
	ptrs := make([]unsafe.Pointer, len(queries))
	lens := make([]uintptr, len(queries))
	for i, q := range queries {
		if q != nil {
			ptrs[i] = unsafe.Pointer(unsafe.SliceData(q))
		}
		lens[i] = uintptr(len(q))
	}
	return ptrs, lens
}

func TestToLen(t *testing.T) {
	cases := []struct {
		in   uint64
		want int
		ok   bool
	}{
		{0, 0, true},
		{250, 250, true},
		{math.MaxInt32, math.MaxInt32, true},
		{math.MaxInt32 + 1, 0, false},
		{math.MaxUint64, 0, false},
	}
	for _, tc := range cases {
		got, ok := toLen(tc.in)
		assert.Equal(t, tc.ok, ok, "toLen(%d)", tc.in)
		assert.Equal(t, tc.want, got, "toLen(%d)", tc.in)
	}
}

func TestClassifyGuards(t *testing.T) {
	h := newHandle(t)
	q := read(1, 2)
	p := unsafe.Pointer(unsafe.SliceData(q))

	assert.Equal(t, int32(0), classify(h, nil, 10))
	assert.Equal(t, int32(0), classify(h, p, math.MaxUint64))
	assert.Equal(t, int32(0), classify(0, p, uint64(len(q))))
	assert.Equal(t, int32(2), classify(h, p, uint64(len(q))))
}

func TestBatchChecksHandleFirst(t *testing.T) {
	// an unusable count and null arrays are not looked at before the handle
	assert.Equal(t, int32(boundary.StatusNullHandle), batch(0, nil, nil, math.MaxUint64, nil))
}

func TestBatchStatusCodes(t *testing.T) {
	h := newHandle(t)
	queries := [][]int32{read(1, 40), read(2, 3), read(3, 40)}
	ptrs, lens := cArrays(queries)

	result := []int32{-1, -1, -1}
	res := unsafe.Pointer(&result[0])
	data := unsafe.Pointer(&ptrs[0])
	lengths := unsafe.Pointer(&lens[0])

	assert.Equal(t, int32(boundary.StatusNullLengths), batch(h, data, lengths, math.MaxUint64, res))
	assert.Equal(t, int32(boundary.StatusNullLengths), batch(h, data, nil, 3, res))
	assert.Equal(t, int32(boundary.StatusNullData), batch(h, nil, lengths, 3, res))
	assert.Equal(t, int32(boundary.StatusNullOutput), batch(h, data, lengths, 3, nil))

	huge := []uintptr{lens[0], math.MaxInt32 + 1, lens[2]}
	assert.Equal(t, int32(boundary.StatusNullQuery), batch(h, data, unsafe.Pointer(&huge[0]), 3, res))

	nullPtrs, _ := cArrays([][]int32{queries[0], nil, queries[2]})
	assert.Equal(t, int32(boundary.StatusNullQuery), batch(h, unsafe.Pointer(&nullPtrs[0]), lengths, 3, res))
	assert.Equal(t, []int32{-1, -1, -1}, result, "result must be untouched")

	require.Equal(t, int32(boundary.StatusOK), batch(h, data, lengths, 3, res))
	for i, q := range queries {
		assert.Equal(t, int32(boundary.Classify(h, q)), result[i], "index %d", i)
	}
	assert.Equal(t, int32(2), result[1])
}
