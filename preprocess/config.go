package preprocess

// Config controls every tunable parameter of the query preprocessing
// pipeline: front trim, event detection and the length gates.
type Config struct {
	TrimFront  int       // leading samples dropped to strip adapter/loading artifacts
	MinRemain  int       // trimming never leaves fewer samples than this
	Windows    []int     // t-test window lengths, shortest first
	Thresholds []float64 // peak threshold per window
	PeakHeight float64   // minimum rise/fall that makes a t-stat peak
}

// DefaultConfig returns the parameters used for R9.4 reads sampled at
// 4 kHz: windows of 4 and 8 samples with thresholds 1.5 and 9.0.
func DefaultConfig() Config {
	return Config{
		TrimFront:  70,
		MinRemain:  15,
		Windows:    []int{4, 8},
		Thresholds: []float64{1.5, 9.0},
		PeakHeight: 0.2,
	}
}

// Validate reports whether the detector settings are usable.
func (c Config) Validate() bool {
	if len(c.Windows) == 0 || len(c.Windows) != len(c.Thresholds) {
		return false
	}
	for _, w := range c.Windows {
		if w < 1 {
			return false
		}
	}
	return c.TrimFront >= 0 && c.MinRemain >= 0
}
