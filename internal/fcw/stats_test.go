package fcw

import (
	"testing"
	"time"
)

func TestPerfWindowEmpty(t *testing.T) {
	var w perfWindow
	s := w.stats()
	if s.FrameCount != 0 || s.Samples != 0 {
		t.Errorf("empty stats = %+v, want zeros", s)
	}
}

func TestPerfWindowStats(t *testing.T) {
	var w perfWindow
	for i := 1; i <= 10; i++ {
		w.record(time.Duration(i) * time.Millisecond)
	}
	s := w.stats()

	if s.FrameCount != 10 || s.Samples != 10 {
		t.Fatalf("counts = %d/%d, want 10/10", s.FrameCount, s.Samples)
	}
	if s.Min != time.Millisecond {
		t.Errorf("min = %v, want 1ms", s.Min)
	}
	if s.Max != 10*time.Millisecond {
		t.Errorf("max = %v, want 10ms", s.Max)
	}
	if s.Avg != 5500*time.Microsecond {
		t.Errorf("avg = %v, want 5.5ms", s.Avg)
	}
	if s.P50 < 4*time.Millisecond || s.P50 > 6*time.Millisecond {
		t.Errorf("p50 = %v, want near 5ms", s.P50)
	}
	if s.P95 < 9*time.Millisecond || s.P95 > 10*time.Millisecond {
		t.Errorf("p95 = %v, want near 10ms", s.P95)
	}
	if s.P50 > s.P85 || s.P85 > s.P95 {
		t.Errorf("percentiles not monotone: p50=%v p85=%v p95=%v", s.P50, s.P85, s.P95)
	}
}

func TestPerfWindowRollsOver(t *testing.T) {
	var w perfWindow
	// Fill past capacity with a slow prefix that must age out.
	for i := 0; i < perfWindowSize; i++ {
		w.record(time.Second)
	}
	for i := 0; i < perfWindowSize; i++ {
		w.record(time.Millisecond)
	}
	s := w.stats()
	if s.FrameCount != 2*perfWindowSize {
		t.Errorf("frame count = %d, want %d", s.FrameCount, 2*perfWindowSize)
	}
	if s.Samples != perfWindowSize {
		t.Errorf("samples = %d, want window cap %d", s.Samples, perfWindowSize)
	}
	if s.Max != time.Millisecond {
		t.Errorf("max = %v, want 1ms (old samples evicted)", s.Max)
	}
}
