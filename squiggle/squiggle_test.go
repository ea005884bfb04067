package squiggle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoMerModel gives every 2-mer a distinct level.
const twoMerModel = `kmer	level_mean	level_stdv	sd_mean	sd_stdv
AA	60.1	1.0	1.0	0.1
AC	65.3	1.0	1.0	0.1
AG	70.2	1.0	1.0	0.1
AT	75.8	1.0	1.0	0.1
CA	80.4	1.0	1.0	0.1
CC	85.0	1.0	1.0	0.1
CG	90.7	1.0	1.0	0.1
CT	95.5	1.0	1.0	0.1
GA	100.2	1.0	1.0	0.1
GC	105.9	1.0	1.0	0.1
GG	110.1	1.0	1.0	0.1
GT	115.6	1.0	1.0	0.1
TA	120.3	1.0	1.0	0.1
TC	125.0	1.0	1.0	0.1
TG	130.8	1.0	1.0	0.1
TT	135.4	1.0	1.0	0.1
`

type mapCache struct {
	refs   map[string]Reference
	writes int
}

func (c *mapCache) GetReference(key string) (Reference, bool, error) {
	ref, ok := c.refs[key]
	return ref, ok, nil
}

func (c *mapCache) StoreReference(key string, ref Reference) error {
	c.refs[key] = ref
	c.writes++
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel(strings.NewReader(twoMerModel))
	require.NoError(t, err)
	assert.Equal(t, 2, m.K)
	assert.Len(t, m.Levels, 16)
	assert.InDelta(t, 90.7, m.Levels["CG"], 1e-4)
}

func TestParseModelErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"header only": "kmer\tlevel_mean\n",
		"mixed k":     "AA\t1.0\nACG\t2.0\n",
		"bad level":   "AA\t1.0\nAC\tfast\n",
		"bad kmer":    "AA\t1.0\nA-\t2.0\n",
		"one column":  "AA\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseModel(strings.NewReader(content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrModel))
		})
	}
}

func TestParseFasta(t *testing.T) {
	seq, err := ParseFasta(strings.NewReader(">chr1 test\nacgt\nTTGG\n>chr2\nCCCC\n"))
	require.NoError(t, err)
	assert.Equal(t, "ACGTTTGG", seq)

	seq, err = ParseFasta(strings.NewReader("ACGT\n"))
	require.NoError(t, err)
	assert.Equal(t, "ACGT", seq)

	_, err = ParseFasta(strings.NewReader(">empty\n"))
	assert.ErrorIs(t, err, ErrReference)
}

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "ACGT", ReverseComplement("ACGT"))
	assert.Equal(t, "NCCAA", ReverseComplement("TTGGX"))
	assert.Equal(t, "", ReverseComplement(""))
}

func TestTemplateComplement(t *testing.T) {
	temp, rev := TemplateComplement("AACCGGTT", 4)
	assert.Equal(t, "AA", temp)
	assert.Equal(t, "TT", rev)

	temp, rev = TemplateComplement("AAC", 100)
	assert.Equal(t, "AAC", temp)
	assert.Equal(t, "GTT", rev)
}

func TestSynthesize(t *testing.T) {
	m, err := ParseModel(strings.NewReader(twoMerModel))
	require.NoError(t, err)

	trace := m.Synthesize("acgNt")
	// AC CG (GN, NT skipped)
	require.Len(t, trace, 2)
	assert.InDelta(t, -1, trace[0], 1e-5)
	assert.InDelta(t, 1, trace[1], 1e-5)

	assert.Nil(t, m.Synthesize("A"))
	assert.Nil(t, m.Synthesize("NNNN"))
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.tsv", twoMerModel)
	ref := writeFile(t, dir, "ref.fa", ">ref\nACGTTGCAAGCTTAGC\n")

	cache := &mapCache{refs: map[string]Reference{}}
	b := &Builder{Cache: cache}

	got, err := b.Build(ref, model, 16)
	require.NoError(t, err)
	// 8 template bases -> 7 2-mers on each strand
	assert.Equal(t, 7, got.TemplateLen)
	assert.Len(t, got.Trace, 14)
	assert.Equal(t, Template, got.Strand(6))
	assert.Equal(t, Complement, got.Strand(7))
	assert.Equal(t, 1, cache.writes)

	again, err := b.Build(ref, model, 16)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, cache.writes)

	// a different budget is a different reference
	_, err = b.Build(ref, model, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.writes)
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.tsv", twoMerModel)
	ref := writeFile(t, dir, "ref.fa", ">ref\nACGTACGT\n")
	badModel := writeFile(t, dir, "bad.model", "AA\tnot-a-number\n")
	shortRef := writeFile(t, dir, "short.fa", ">ref\nA\n")

	b := &Builder{}
	_, err := b.Build(ref, filepath.Join(dir, "missing.model"), 8)
	assert.ErrorIs(t, err, ErrModel)

	_, err = b.Build(ref, badModel, 8)
	assert.ErrorIs(t, err, ErrModel)

	_, err = b.Build(filepath.Join(dir, "missing.fa"), model, 8)
	assert.ErrorIs(t, err, ErrReference)

	_, err = b.Build(shortRef, model, 8)
	assert.ErrorIs(t, err, ErrReference)

	// only unknown k-mers: synthesis fails and nothing is cached
	unknown := writeFile(t, dir, "unknown.fa", ">ref\nNNNNNNNN\n")
	cache := &mapCache{refs: map[string]Reference{}}
	_, err = (&Builder{Cache: cache}).Build(unknown, model, 8)
	assert.ErrorIs(t, err, ErrReference)
	assert.Contains(t, err.Error(), "no 2-mers")
	assert.Zero(t, cache.writes)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey([]byte("m"), []byte("r"), 10)
	assert.Equal(t, a, CacheKey([]byte("m"), []byte("r"), 10))
	assert.NotEqual(t, a, CacheKey([]byte("m"), []byte("r"), 11))
	assert.NotEqual(t, a, CacheKey([]byte("mr"), []byte(""), 10))
	assert.Len(t, a, 16)
}
