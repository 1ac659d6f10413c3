package fcw

import (
	"testing"
	"time"
)

func TestPipelineEndToEnd(t *testing.T) {
	p := NewPipeline(DefaultPipelineConfig())
	base := time.Now()

	// A large car straight ahead in ego's lane, frame after frame.
	var result FrameResult
	for i := 0; i < 5; i++ {
		result = p.ProcessFrame(FrameInput{
			Timestamp:      base.Add(time.Duration(i) * 40 * time.Millisecond),
			Detections:     []Detection{{Box: BBox{200, 140, 440, 340}, Confidence: 0.9, ClassName: "car"}},
			LaneBoundaries: twoLanes(),
			FrameWidth:     640,
			FrameHeight:    480,
		})
	}

	if result.Frame != 5 {
		t.Errorf("frame = %d, want 5", result.Frame)
	}
	if len(result.Tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(result.Tracks))
	}
	track := result.Tracks[0]
	if track.DistanceM <= 0 || track.DistanceM > 100 {
		t.Errorf("distance = %v, want a positive bounded estimate", track.DistanceM)
	}
	// A stationary car 6m ahead in ego's lane is a same-lane threat.
	if len(result.Risk.Threats) != 1 || result.Risk.Threats[0].Type != ThreatSameLane {
		t.Errorf("risk threats = %+v, want single same-lane threat", result.Risk.Threats)
	}
	if result.Risk.RiskLevel != RiskCritical {
		t.Errorf("risk level = %v, want Critical", result.Risk.RiskLevel)
	}
	if result.Lanes == nil || result.Lanes.EgoLane != 1 {
		t.Errorf("lanes = %+v, want ego lane 1", result.Lanes)
	}
}

func TestPipelineEmptyFrame(t *testing.T) {
	p := NewPipeline(DefaultPipelineConfig())
	result := p.ProcessFrame(FrameInput{FrameWidth: 640, FrameHeight: 480})

	if result.Timestamp.IsZero() {
		t.Error("zero input timestamp should default to processing time")
	}
	if len(result.Tracks) != 0 {
		t.Errorf("tracks = %d, want 0", len(result.Tracks))
	}
	if result.Risk.RiskLevel != RiskNone {
		t.Errorf("risk = %v, want None", result.Risk.RiskLevel)
	}
}

func TestPipelineLatestResult(t *testing.T) {
	p := NewPipeline(DefaultPipelineConfig())

	if _, ok := p.LatestResult(); ok {
		t.Error("LatestResult reported a value before any frame")
	}

	p.ProcessFrame(FrameInput{FrameWidth: 640, FrameHeight: 480})
	p.ProcessFrame(FrameInput{FrameWidth: 640, FrameHeight: 480})

	latest, ok := p.LatestResult()
	if !ok {
		t.Fatal("LatestResult empty after processing frames")
	}
	if latest.Frame != 2 {
		t.Errorf("latest frame = %d, want 2", latest.Frame)
	}
}

func TestPipelineStats(t *testing.T) {
	p := NewPipeline(DefaultPipelineConfig())
	for i := 0; i < 3; i++ {
		p.ProcessFrame(FrameInput{
			Detections:  []Detection{{Box: BBox{100, 100, 200, 200}, Confidence: 0.9, ClassName: "car"}},
			FrameWidth:  640,
			FrameHeight: 480,
		})
	}

	stats := p.Stats()
	if stats.Perf.FrameCount != 3 {
		t.Errorf("frame count = %d, want 3", stats.Perf.FrameCount)
	}
	if stats.Perf.Samples != 3 {
		t.Errorf("samples = %d, want 3", stats.Perf.Samples)
	}
	if stats.ActiveTracks != 1 {
		t.Errorf("active tracks = %d, want 1", stats.ActiveTracks)
	}
	if stats.HistorySize != 1 {
		t.Errorf("history size = %d, want 1", stats.HistorySize)
	}
}

func TestPipelineEvictionWiring(t *testing.T) {
	cfg := DefaultPipelineConfig()
	p := NewPipeline(cfg)

	p.ProcessFrame(FrameInput{
		Detections:  []Detection{{Box: BBox{100, 100, 200, 200}, Confidence: 0.9, ClassName: "car"}},
		FrameWidth:  640,
		FrameHeight: 480,
	})
	if p.Stats().HistorySize != 1 {
		t.Fatal("analyzer history not populated")
	}

	// Enough empty frames age the track out; its analyzer history must
	// retire with it.
	for i := 0; i < cfg.Tracker.MaxAge+2; i++ {
		p.ProcessFrame(FrameInput{FrameWidth: 640, FrameHeight: 480})
	}
	stats := p.Stats()
	if stats.ActiveTracks != 0 {
		t.Errorf("active tracks = %d, want 0", stats.ActiveTracks)
	}
	if stats.HistorySize != 0 {
		t.Errorf("history size = %d after eviction, want 0", stats.HistorySize)
	}
}
