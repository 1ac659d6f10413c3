package fcw

import (
	"math"
	"testing"
	"time"
)

func newTestKinematics() *Kinematics {
	cfg := DefaultKinematicsConfig()
	return NewKinematics(&cfg)
}

func TestDistanceEstimateBounds(t *testing.T) {
	base := time.Now()
	boxes := []BBox{
		{0, 0, 2, 2},     // tiny box, estimate clamps at the far bound
		{0, 0, 30, 36},   // small distant car
		{0, 0, 240, 200}, // large close car
		{0, 0, 640, 480}, // fills the frame
	}
	var last float64 = math.Inf(1)
	for _, box := range boxes {
		k := newTestKinematics()
		k.Observe(base, box, "car")
		if k.DistanceM < 0.5 || k.DistanceM > 100 {
			t.Errorf("box %v: distance %v outside [0.5, 100]", box, k.DistanceM)
		}
		if k.DistanceM >= last {
			t.Errorf("box %v: distance %v not smaller than previous %v (larger box should be closer)", box, k.DistanceM, last)
		}
		last = k.DistanceM
	}
}

func TestDistanceEstimateKnownGeometry(t *testing.T) {
	// A 1.5m-tall car at 800px focal length appearing 200px tall sits at
	// 1.5*800/200 = 6m; the width and area estimates agree for a box
	// whose aspect matches the assumed car dimensions.
	k := newTestKinematics()
	k.Observe(time.Now(), BBox{0, 0, 240, 200}, "car")
	if math.Abs(k.DistanceM-6) > 0.01 {
		t.Errorf("distance = %v, want 6", k.DistanceM)
	}
}

func TestDistanceEstimateDegenerateBox(t *testing.T) {
	k := newTestKinematics()
	k.Observe(time.Now(), BBox{}, "car")
	if k.DistanceM != 50 {
		t.Errorf("degenerate box distance = %v, want default 50", k.DistanceM)
	}
}

func TestDistanceEstimateUnknownClass(t *testing.T) {
	base := time.Now()
	k := newTestKinematics()
	k.Observe(base, BBox{0, 0, 240, 200}, "unicycle")

	ref := newTestKinematics()
	ref.Observe(base, BBox{0, 0, 240, 200}, "car")

	// The fallback size matches the car profile.
	if k.DistanceM != ref.DistanceM {
		t.Errorf("unknown class distance = %v, want fallback %v", k.DistanceM, ref.DistanceM)
	}
}

func TestTTCInfiniteWhenNotApproaching(t *testing.T) {
	k := newTestKinematics()
	base := time.Now()
	// Box moves up the frame (away from the camera).
	for i := 0; i < 5; i++ {
		y := float32(300 - i*20)
		k.Observe(base.Add(time.Duration(i)*100*time.Millisecond), BBox{200, y, 440, y + 200}, "car")
	}
	if !math.IsInf(k.TTC, 1) {
		t.Errorf("TTC = %v for receding object, want +Inf", k.TTC)
	}
}

func TestTTCFiniteWhenClosing(t *testing.T) {
	k := newTestKinematics()
	base := time.Now()
	// Box descends 20px every 100ms at a constant 6m estimated distance.
	for i := 0; i < 5; i++ {
		y := float32(100 + i*20)
		k.Observe(base.Add(time.Duration(i)*100*time.Millisecond), BBox{200, y, 440, y + 200}, "car")
	}
	if math.IsInf(k.TTC, 1) {
		t.Fatal("TTC = +Inf for approaching object, want finite")
	}
	if k.TTC <= 0 || k.TTC > 60 {
		t.Errorf("TTC = %v, want within (0, 60]", k.TTC)
	}
	if k.Risk < RiskMedium {
		t.Errorf("risk = %v for a close approaching car, want at least Medium", k.Risk)
	}
}

func TestStandaloneRiskFarSlowObject(t *testing.T) {
	k := newTestKinematics()
	k.Observe(time.Now(), BBox{300, 100, 330, 136}, "car")
	if k.Risk > RiskLow {
		t.Errorf("risk = %v for a distant static car, want at most Low", k.Risk)
	}
}

func TestPredictPosition(t *testing.T) {
	k := newTestKinematics()
	if x, y := k.PredictPosition(1); x != 0 || y != 0 {
		t.Errorf("empty history prediction = (%v, %v), want (0, 0)", x, y)
	}

	base := time.Now()
	for i := 0; i < 4; i++ {
		y := float32(100 + i*10)
		k.Observe(base.Add(time.Duration(i)*100*time.Millisecond), BBox{200, y, 440, y + 200}, "car")
	}
	_, py := k.PredictPosition(0.5)
	last := k.History()[len(k.History())-1]
	if py <= float64(last.Y) {
		t.Errorf("predicted y %v not ahead of last observed %v for a descending object", py, last.Y)
	}
}

func TestHistoryCapped(t *testing.T) {
	cfg := DefaultKinematicsConfig()
	k := NewKinematics(&cfg)
	base := time.Now()
	for i := 0; i < cfg.MaxHistoryLength+5; i++ {
		k.Observe(base.Add(time.Duration(i)*40*time.Millisecond), BBox{0, 0, 100, 100}, "car")
	}
	if got := len(k.History()); got != cfg.MaxHistoryLength {
		t.Errorf("history length = %d, want cap %d", got, cfg.MaxHistoryLength)
	}
}
