package raw

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"
)

// ExtractFast5 pulls every raw signal dataset out of a single- or
// multi-read fast5 file using the HDF5 command line tools (h5ls, h5dump).
func ExtractFast5(inputPath string) ([]Read, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input file does not exist: %v", err)
	}

	datasets, err := listSignalDatasets(inputPath)
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no raw signal found in %s", inputPath)
	}

	reads := make([]Read, 0, len(datasets))
	for _, ds := range datasets {
		cmd := exec.Command("h5dump", "-y", "-w", "0", "-d", ds, inputPath)
		output, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("h5dump of %s failed: %v", ds, err)
		}
		samples, err := parseH5Dump(output)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %v", ds, err)
		}
		reads = append(reads, Read{ID: readID(ds), Samples: samples})
	}
	return reads, nil
}

func listSignalDatasets(inputPath string) ([]string, error) {
	cmd := exec.Command("h5ls", "-r", inputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("h5ls failed: %v, output %s", err, output)
	}

	var datasets []string
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[1] == "Dataset" && path.Base(fields[0]) == "Signal" {
			datasets = append(datasets, fields[0])
		}
	}
	return datasets, sc.Err()
}

// readID names a read after the group holding its Signal dataset, e.g.
// /read_0a1b/Raw/Signal -> read_0a1b, /Raw/Reads/Read_42/Signal -> Read_42.
func readID(dataset string) string {
	parts := strings.Split(strings.Trim(dataset, "/"), "/")
	for _, p := range parts {
		if strings.HasPrefix(strings.ToLower(p), "read_") {
			return p
		}
	}
	return dataset
}

// parseH5Dump extracts the values of the DATA block of h5dump -y output.
func parseH5Dump(output []byte) ([]int32, error) {
	text := string(output)
	start := strings.Index(text, "DATA {")
	if start < 0 {
		return nil, fmt.Errorf("no DATA block")
	}
	text = text[start+len("DATA {"):]
	end := strings.Index(text, "}")
	if end < 0 {
		return nil, fmt.Errorf("unterminated DATA block")
	}

	var samples []int32
	for _, line := range strings.Split(text[:end], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var err error
		if samples, err = appendInts(samples, line); err != nil {
			return nil, err
		}
	}
	return samples, nil
}
