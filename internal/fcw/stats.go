package fcw

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// perfWindowSize bounds the rolling window of per-frame durations.
const perfWindowSize = 50

// PerfStats summarises recent per-frame processing latency.
type PerfStats struct {
	FrameCount uint64        `json:"frame_count"`
	Samples    int           `json:"samples"`
	Avg        time.Duration `json:"avg"`
	Min        time.Duration `json:"min"`
	Max        time.Duration `json:"max"`
	P50        time.Duration `json:"p50"`
	P85        time.Duration `json:"p85"`
	P95        time.Duration `json:"p95"`
}

// perfWindow is a fixed-capacity ring of frame durations. Not safe for
// concurrent use; the pipeline guards it with its own lock.
type perfWindow struct {
	samples [perfWindowSize]time.Duration
	head    int
	size    int
	frames  uint64
}

func (w *perfWindow) record(d time.Duration) {
	w.samples[w.head] = d
	w.head = (w.head + 1) % perfWindowSize
	if w.size < perfWindowSize {
		w.size++
	}
	w.frames++
}

func (w *perfWindow) stats() PerfStats {
	s := PerfStats{FrameCount: w.frames, Samples: w.size}
	if w.size == 0 {
		return s
	}

	xs := make([]float64, w.size)
	s.Min = w.samples[0]
	s.Max = w.samples[0]
	for i := 0; i < w.size; i++ {
		d := w.samples[i]
		xs[i] = float64(d)
		if d < s.Min {
			s.Min = d
		}
		if d > s.Max {
			s.Max = d
		}
	}
	s.Avg = time.Duration(stat.Mean(xs, nil))

	sort.Float64s(xs)
	s.P50 = time.Duration(stat.Quantile(0.50, stat.Empirical, xs, nil))
	s.P85 = time.Duration(stat.Quantile(0.85, stat.Empirical, xs, nil))
	s.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, xs, nil))
	return s
}
