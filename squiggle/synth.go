package squiggle

import (
	"strings"

	"dyss/preprocess"
)

// Synthesize converts seq into its expected current trace: one level per
// k-mer, z-normalised so it is comparable with preprocessed queries.
// k-mers the model does not know (for example ones containing N) are
// skipped.
func (m *Model) Synthesize(seq string) []float32 {
	seq = strings.ToUpper(seq)
	if len(seq) < m.K {
		return nil
	}
	levels := make([]float32, 0, len(seq)-m.K+1)
	for i := 0; i+m.K <= len(seq); i++ {
		if level, ok := m.Levels[seq[i:i+m.K]]; ok {
			levels = append(levels, level)
		}
	}
	if len(levels) == 0 {
		return nil
	}
	return preprocess.Normalize(levels)
}
