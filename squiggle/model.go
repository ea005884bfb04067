// Package squiggle turns nucleotide sequences into expected current
// traces under a k-mer model and assembles the classifier reference.
package squiggle

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/mdobak/go-xerrors"
)

var (
	// ErrModel marks a k-mer model that cannot be read or parsed.
	ErrModel = xerrors.Message("squiggle: invalid k-mer model")
	// ErrReference marks a reference sequence that cannot be read or used.
	ErrReference = xerrors.Message("squiggle: invalid reference")
)

// Model maps every k-mer to its expected mean current level.
type Model struct {
	K      int
	Levels map[string]float32
}

// ParseModel parses a tab or space separated model table. the first column
// is the k-mer and the second its level mean; further columns are ignored.
// a leading header row and '#' comments are skipped.
func ParseModel(r io.Reader) (*Model, error) {
	m := &Model{Levels: make(map[string]float32)}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, xerrors.New(ErrModel, "line "+strconv.Itoa(lineNo)+": too few columns")
		}
		level, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			if len(m.Levels) == 0 && !isKmer(fields[0]) {
				continue // header
			}
			return nil, xerrors.New(ErrModel, "line "+strconv.Itoa(lineNo), err)
		}
		kmer := strings.ToUpper(fields[0])
		if !isKmer(kmer) {
			return nil, xerrors.New(ErrModel, "line "+strconv.Itoa(lineNo)+": bad k-mer "+fields[0])
		}
		if m.K == 0 {
			m.K = len(kmer)
		} else if len(kmer) != m.K {
			return nil, xerrors.New(ErrModel, "line "+strconv.Itoa(lineNo)+": mixed k-mer lengths")
		}
		m.Levels[kmer] = float32(level)
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.New(ErrModel, err)
	}
	if len(m.Levels) == 0 {
		return nil, xerrors.New(ErrModel, "no k-mers")
	}
	return m, nil
}

func isKmer(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		default:
			return false
		}
	}
	return true
}
