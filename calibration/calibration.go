// Package calibration loads the table that maps a classifier setup
// (reference size, power, packs, scouts) to its decision threshold.
//
// The table is a comma-separated file with one header line followed by
// rows of
//
//	reference_size_kilo,power,num_packs,num_scouts,threshold,specificity
//
// where reference_size_kilo is expanded ×1000 to form the lookup key.
package calibration

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// ErrNoRow is returned when no row of the table matches a key.
var ErrNoRow = xerrors.Message("calibration: no matching row")

const numFields = 6

// Key identifies a calibration experiment. matching is exact on all fields.
type Key struct {
	RefSize   int // reference size in samples
	Power     int // dedup power, percentage
	NumPacks  int
	NumScouts int
}

// Row is one parsed calibration experiment.
type Row struct {
	Key
	Threshold   float32
	Specificity float32
}

// Source is anything that can answer calibration lookups.
type Source interface {
	Lookup(k Key) (Row, bool, error)
}

// Table is an in-memory calibration table in file order.
type Table struct {
	Rows []Row
}

// Load reads the calibration table at path. malformed rows are logged and
// skipped; only failing to open or read the file is an error.
func Load(path string, logger *slog.Logger) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.New("calibration: open table", err)
	}
	defer f.Close()
	return Parse(f, logger)
}

// Parse reads a calibration table from r.
func Parse(r io.Reader, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Table{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		row, err := ParseLine(line)
		if err != nil {
			logger.Warn("skipping calibration row", "line", lineNo, "err", err)
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.New("calibration: read table", err)
	}
	return t, nil
}

// ParseLine parses one data row of the table. whitespace around fields
// is ignored, so "200, 9, 3, 14, 40.25, 0.99" is a valid row.
func ParseLine(line string) (Row, error) {
	fields := strings.Split(line, ",")
	if len(fields) < numFields {
		return Row{}, xerrors.New("calibration: expected 6 fields, got " + strconv.Itoa(len(fields)))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	var row Row
	ints := []*int{&row.RefSize, &row.Power, &row.NumPacks, &row.NumScouts}
	for i, dst := range ints {
		v, err := strconv.ParseUint(fields[i], 10, 32)
		if err != nil {
			return Row{}, xerrors.New("calibration: field "+strconv.Itoa(i+1), err)
		}
		*dst = int(v)
	}
	row.RefSize *= 1000

	floats := []*float32{&row.Threshold, &row.Specificity}
	for i, dst := range floats {
		v, err := strconv.ParseFloat(fields[4+i], 32)
		if err != nil {
			return Row{}, xerrors.New("calibration: field "+strconv.Itoa(5+i), err)
		}
		*dst = float32(v)
	}
	return row, nil
}

// Lookup returns the first row, in file order, whose key equals k.
func (t *Table) Lookup(k Key) (Row, bool, error) {
	for _, row := range t.Rows {
		if row.Key == k {
			return row, true, nil
		}
	}
	return Row{}, false, nil
}

// Lookup opens the table at path and looks k up. a missing file is
// reported the same way as a missing row.
func Lookup(path string, k Key, logger *slog.Logger) (threshold, specificity float32, ok bool) {
	t, err := Load(path, logger)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("calibration table unavailable", "path", path, "err", err)
		return 0, 0, false
	}
	row, found, _ := t.Lookup(k)
	if !found {
		return 0, 0, false
	}
	return row.Threshold, row.Specificity, true
}
