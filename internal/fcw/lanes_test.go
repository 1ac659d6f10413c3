package fcw

import "testing"

// twoLanes builds boundaries for a 640px frame: lane 0 spans columns
// 20–220, lane 1 spans 220–420. The frame centre (320) is exactly the
// centre of lane 1.
func twoLanes() []LaneBoundary {
	return []LaneBoundary{
		{
			Left:  LaneSegment{X1: 20, Y1: 480, X2: 20, Y2: 300},
			Right: LaneSegment{X1: 220, Y1: 480, X2: 220, Y2: 300},
		},
		{
			Left:  LaneSegment{X1: 220, Y1: 480, X2: 220, Y2: 300},
			Right: LaneSegment{X1: 420, Y1: 480, X2: 420, Y2: 300},
		},
	}
}

func TestLaneBoundaryContains(t *testing.T) {
	b := twoLanes()[0]
	if !b.Contains(200) {
		t.Error("Contains(200) = false, want true")
	}
	if b.Contains(350) {
		t.Error("Contains(350) = true, want false")
	}
	if !b.Contains(20) || !b.Contains(220) {
		t.Error("boundary columns should be inclusive")
	}
}

func TestVehicleLane(t *testing.T) {
	li := &LaneInfo{Boundaries: twoLanes(), EgoLane: 1, FrameWidth: 640}

	tests := []struct {
		name string
		box  BBox
		want int
	}{
		{"inside lane 0", BBox{100, 200, 200, 300}, 0},
		{"inside lane 1", BBox{300, 200, 400, 300}, 1},
		{"left of all boundaries is oncoming", BBox{0, 200, 10, 300}, OncomingLane},
		{"right of all boundaries is right of ego", BBox{550, 200, 630, 300}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := li.VehicleLane(tt.box); got != tt.want {
				t.Errorf("VehicleLane = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVehicleLaneNoBoundaries(t *testing.T) {
	li := &LaneInfo{FrameWidth: 640}
	if got := li.VehicleLane(BBox{10, 10, 50, 50}); got != 0 {
		t.Errorf("VehicleLane with no boundaries = %d, want 0", got)
	}
}

func TestLaneTrackerEgoLane(t *testing.T) {
	lt := NewLaneTracker(30)
	info := lt.Observe(twoLanes(), 640, 480)
	if info.EgoLane != 1 {
		t.Errorf("EgoLane = %d, want 1 (frame centre 320 in lane 1)", info.EgoLane)
	}
	if info.LaneChangeDetected {
		t.Error("lane change detected on first frame")
	}
}

func TestLaneTrackerNoBoundaries(t *testing.T) {
	lt := NewLaneTracker(30)
	info := lt.Observe(nil, 640, 480)
	if info.EgoLane != 0 || info.LaneChangeDetected {
		t.Errorf("degenerate snapshot: ego=%d change=%v, want 0/false", info.EgoLane, info.LaneChangeDetected)
	}
	if info.LaneChangeDirection != LaneChangeNone {
		t.Errorf("direction = %q, want none", info.LaneChangeDirection)
	}
}

// shiftedLanes returns the two-lane geometry displaced by dx pixels.
// With a fixed camera, lane boundaries shifting left means ego drifting
// right.
func shiftedLanes(dx float32) []LaneBoundary {
	out := twoLanes()
	for i := range out {
		out[i].Left.X1 += dx
		out[i].Left.X2 += dx
		out[i].Right.X1 += dx
		out[i].Right.X2 += dx
	}
	return out
}

func TestLaneTrackerDetectsLaneChange(t *testing.T) {
	lt := NewLaneTracker(30)

	// Stable frames first, then the geometry slides 15px left per frame:
	// ego's offset from its lane centre grows rightward.
	for i := 0; i < 4; i++ {
		info := lt.Observe(twoLanes(), 640, 480)
		if info.LaneChangeDetected {
			t.Fatalf("frame %d: premature lane change", i)
		}
	}

	var last *LaneInfo
	for i := 1; i <= 4; i++ {
		last = lt.Observe(shiftedLanes(-15*float32(i)), 640, 480)
	}
	if !last.LaneChangeDetected {
		t.Fatal("lane change not detected after 60px geometry shift")
	}
	if last.LaneChangeDirection != LaneChangeRight {
		t.Errorf("direction = %q, want right", last.LaneChangeDirection)
	}
}

func TestLaneTrackerLeftwardChange(t *testing.T) {
	lt := NewLaneTracker(30)
	for i := 0; i < 4; i++ {
		lt.Observe(twoLanes(), 640, 480)
	}
	var last *LaneInfo
	for i := 1; i <= 4; i++ {
		last = lt.Observe(shiftedLanes(15*float32(i)), 640, 480)
	}
	if !last.LaneChangeDetected || last.LaneChangeDirection != LaneChangeLeft {
		t.Errorf("detected=%v direction=%q, want true/left", last.LaneChangeDetected, last.LaneChangeDirection)
	}
}
