package preprocess

import (
	"math"
	"sort"
)

// varianceFloor keeps the t statistic finite on perfectly flat windows.
const varianceFloor = 1e-4

// Event is one dwell segment of near-constant current.
type Event struct {
	Start  int // index of the first sample in the segment
	Length int
	Mean   float64
}

// DetectEvents segments raw samples into events. each window length runs
// a two-sample t-test at every position; peaks in the statistics mark
// level changes, with shorter windows masking the longer ones around
// their peaks.
func DetectEvents(samples []int32, cfg Config) []Event {
	n := len(samples)
	if n == 0 {
		return nil
	}

	sum := make([]float64, n+1)
	sumsq := make([]float64, n+1)
	for i, s := range samples {
		x := float64(s)
		sum[i+1] = sum[i] + x
		sumsq[i+1] = sumsq[i] + x*x
	}

	detectors := make([]*detector, len(cfg.Windows))
	for k, w := range cfg.Windows {
		detectors[k] = newDetector(tstat(sum, sumsq, n, w), w, cfg.Thresholds[k])
	}
	bounds := detectPeaks(detectors, cfg.PeakHeight, n)

	events := make([]Event, 0, len(bounds)+1)
	start := 0
	for _, b := range append(bounds, n) {
		if b <= start {
			continue
		}
		events = append(events, Event{
			Start:  start,
			Length: b - start,
			Mean:   (sum[b] - sum[start]) / float64(b-start),
		})
		start = b
	}
	return events
}

// tstat computes the Welch style statistic comparing the w samples before
// and after each position. positions without a full window on both sides
// score zero.
func tstat(sum, sumsq []float64, n, w int) []float64 {
	out := make([]float64, n)
	if n < 2*w {
		return out
	}
	fw := float64(w)
	for i := w; i <= n-w; i++ {
		m1 := (sum[i] - sum[i-w]) / fw
		m2 := (sum[i+w] - sum[i]) / fw
		v := (sumsq[i]-sumsq[i-w])/fw - m1*m1 + (sumsq[i+w]-sumsq[i])/fw - m2*m2
		if v < varianceFloor {
			v = varianceFloor
		}
		out[i] = math.Abs(m2-m1) / math.Sqrt(v/fw)
	}
	return out
}

type detector struct {
	signal    []float64
	window    int
	threshold float64
	maskedTo  int
	peakPos   int
	peakValue float64
	validPeak bool
}

func newDetector(signal []float64, window int, threshold float64) *detector {
	d := &detector{signal: signal, window: window, threshold: threshold, maskedTo: -1}
	d.reset()
	return d
}

func (d *detector) reset() {
	d.peakPos = -1
	d.peakValue = math.MaxFloat64
	d.validPeak = false
}

func detectPeaks(detectors []*detector, peakHeight float64, n int) []int {
	var peaks []int
	for i := 0; i < n; i++ {
		for k, d := range detectors {
			if d.maskedTo >= i {
				continue
			}
			cur := d.signal[i]

			if d.peakPos < 0 {
				// waiting for the statistic to climb out of a trough
				if cur < d.peakValue {
					d.peakValue = cur
				} else if cur-d.peakValue > peakHeight {
					d.peakValue = cur
					d.peakPos = i
				}
				continue
			}

			if cur > d.peakValue {
				d.peakValue = cur
				d.peakPos = i
			}
			// a firing short window owns this stretch of signal
			if d.peakValue > d.threshold {
				for _, other := range detectors[k+1:] {
					other.maskedTo = d.peakPos + d.window
					other.reset()
				}
			}
			if d.peakValue-cur > peakHeight && d.peakValue > d.threshold {
				d.validPeak = true
			}
			if d.validPeak && i-d.peakPos > d.window/2 {
				peaks = append(peaks, d.peakPos)
				d.reset()
				d.peakValue = cur
			}
		}
	}

	sort.Ints(peaks)
	out := peaks[:0]
	for i, p := range peaks {
		if i > 0 && p == peaks[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
