package fcw

import "testing"

func TestHistoryArenaPushAndWindow(t *testing.T) {
	a := NewHistoryArena(4)

	if got := a.Window(1); got != nil {
		t.Errorf("Window(unknown) = %v, want nil", got)
	}

	for i := 0; i < 3; i++ {
		a.Push(1, uint64(i), TrackPoint{X: float32(i), Y: float32(i * 10)})
	}
	w := a.Window(1)
	if len(w) != 3 {
		t.Fatalf("window length = %d, want 3", len(w))
	}
	for i, pt := range w {
		if pt.X != float32(i) {
			t.Errorf("window[%d].X = %v, want %v (oldest first)", i, pt.X, i)
		}
	}
}

func TestHistoryArenaRingOverwrite(t *testing.T) {
	a := NewHistoryArena(3)
	for i := 0; i < 5; i++ {
		a.Push(7, uint64(i), TrackPoint{X: float32(i)})
	}
	w := a.Window(7)
	if len(w) != 3 {
		t.Fatalf("window length = %d, want 3", len(w))
	}
	// Samples 0 and 1 were overwritten.
	want := []float32{2, 3, 4}
	for i, pt := range w {
		if pt.X != want[i] {
			t.Errorf("window[%d].X = %v, want %v", i, pt.X, want[i])
		}
	}
}

func TestHistoryArenaEvict(t *testing.T) {
	a := NewHistoryArena(4)
	a.Push(1, 0, TrackPoint{})
	a.Push(2, 0, TrackPoint{})
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}

	a.Evict(1)
	if a.Len() != 1 {
		t.Errorf("Len after evict = %d, want 1", a.Len())
	}
	if a.Window(1) != nil {
		t.Error("evicted identity still has a window")
	}
	if a.Window(2) == nil {
		t.Error("surviving identity lost its window")
	}
}

func TestHistoryArenaPruneAbsent(t *testing.T) {
	a := NewHistoryArena(4)
	a.Push(1, 1, TrackPoint{})
	a.Push(2, 9, TrackPoint{})

	a.PruneAbsent(10, 5)
	if a.Window(1) != nil {
		t.Error("stale identity survived pruning")
	}
	if a.Window(2) == nil {
		t.Error("fresh identity was pruned")
	}
}

func TestHistoryArenaMinCapacity(t *testing.T) {
	a := NewHistoryArena(0)
	a.Push(1, 0, TrackPoint{X: 5})
	w := a.Window(1)
	if len(w) != 1 || w[0].X != 5 {
		t.Errorf("window = %v, want single sample with X=5", w)
	}
}
