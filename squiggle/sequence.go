package squiggle

import (
	"bufio"
	"io"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// ParseFasta returns the sequence of the first FASTA record in r. input
// without a '>' header is read as one bare sequence.
func ParseFasta(r io.Reader) (string, error) {
	var sb strings.Builder
	inRecord := false
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if inRecord {
				break
			}
			inRecord = true
			continue
		}
		sb.WriteString(strings.ToUpper(line))
	}
	if err := sc.Err(); err != nil {
		return "", xerrors.New(ErrReference, err)
	}
	if sb.Len() == 0 {
		return "", xerrors.New(ErrReference, "empty sequence")
	}
	return sb.String(), nil
}

// ReverseComplement returns the reverse complement of a DNA sequence.
// anything other than ACGT becomes N.
func ReverseComplement(seq string) string {
	n := len(seq)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		var c byte
		switch seq[n-1-i] {
		case 'A', 'a':
			c = 'T'
		case 'T', 't':
			c = 'A'
		case 'C', 'c':
			c = 'G'
		case 'G', 'g':
			c = 'C'
		default:
			c = 'N'
		}
		out[i] = c
	}
	return string(out)
}

// TemplateComplement splits the reference budget between both strands:
// the template is the first refSize/2 bases of seq (all of it if seq is
// shorter) and the complement is its reverse complement.
func TemplateComplement(seq string, refSize int) (template, complement string) {
	half := refSize / 2
	if half <= 0 || half > len(seq) {
		half = len(seq)
	}
	template = seq[:half]
	return template, ReverseComplement(template)
}
