// Package raw loads raw nanopore reads: plain-text sample dumps, JSON
// documents and fast5 files.
package raw

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/tidwall/gjson"
)

// Read is one raw read.
type Read struct {
	ID      string
	Channel int
	Samples []int32
}

// ReadFile loads every read stored at path, picking the format from the
// extension: .json, .fast5, anything else is text.
func ReadFile(path string) ([]Read, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fast5":
		return ExtractFast5(path)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", path, err)
		}
		read, err := ParseJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", path, err)
		}
		if read.ID == "" {
			read.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return []Read{*read}, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %v", path, err)
		}
		defer f.Close()
		samples, err := ParseText(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %v", path, err)
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return []Read{{ID: id, Samples: samples}}, nil
	}
}

// ParseText reads integers separated by whitespace or commas. lines
// starting with '#' are comments.
func ParseText(r io.Reader) ([]int32, error) {
	var samples []int32
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out, err := appendInts(samples, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", lineNo, err)
		}
		samples = out
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func appendInts(dst []int32, s string) ([]int32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, err
		}
		dst = append(dst, int32(v))
	}
	return dst, nil
}

// ParseJSON decodes {"read_id": "...", "channel": n, "samples": [...]}.
// only samples is required.
func ParseJSON(data []byte) (*Read, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	samples, err := ParseSamples(data, "samples")
	if err != nil {
		return nil, err
	}
	return &Read{
		ID:      gjson.GetBytes(data, "read_id").String(),
		Channel: int(gjson.GetBytes(data, "channel").Int()),
		Samples: samples,
	}, nil
}

// ParseSamples decodes the integer array found at keys inside data.
// the result is non-nil even for an empty array.
func ParseSamples(data []byte, keys ...string) ([]int32, error) {
	samples := []int32{}
	var parseErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if parseErr != nil {
			return
		}
		if dataType != jsonparser.Number {
			parseErr = fmt.Errorf("sample %d is not a number", len(samples))
			return
		}
		v, err := strconv.ParseInt(string(bytes.TrimSpace(value)), 10, 32)
		if err != nil {
			parseErr = fmt.Errorf("sample %d: %v", len(samples), err)
			return
		}
		samples = append(samples, int32(v))
	}, keys...)
	if err != nil {
		return nil, fmt.Errorf("reading samples: %v", err)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return samples, nil
}
