package fcw

import (
	"sync"
	"time"
)

// PipelineConfig aggregates the per-stage configuration.
type PipelineConfig struct {
	Tracker               TrackerConfig
	Kinematics            KinematicsConfig
	Analyzer              AnalyzerConfig
	LaneChangeThresholdPx float32
}

// DefaultPipelineConfig returns the stage defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Tracker:               DefaultTrackerConfig(),
		Kinematics:            DefaultKinematicsConfig(),
		Analyzer:              DefaultAnalyzerConfig(),
		LaneChangeThresholdPx: 30,
	}
}

// FrameInput is everything the pipeline consumes for one frame: the
// detector's output plus the lane detector's boundary geometry. Either
// collaborator may legitimately produce nothing.
type FrameInput struct {
	Timestamp      time.Time      `json:"timestamp"`
	Detections     []Detection    `json:"detections"`
	LaneBoundaries []LaneBoundary `json:"lane_boundaries,omitempty"`
	FrameWidth     int            `json:"frame_width"`
	FrameHeight    int            `json:"frame_height"`
}

// FrameResult is the pipeline's per-frame output.
type FrameResult struct {
	Frame     uint64          `json:"frame"`
	Timestamp time.Time       `json:"timestamp"`
	Tracks    []TrackSnapshot `json:"tracks"`
	Lanes     *LaneInfo       `json:"lanes"`
	Risk      FrameRiskResult `json:"risk"`
	Elapsed   time.Duration   `json:"-"`
	ElapsedMs float64         `json:"elapsed_ms"`
}

// Pipeline runs the per-frame perception chain: track, estimate
// kinematics, resolve lanes, assess collision risk. ProcessFrame is
// synchronous and frames must be fed in arrival order; the internal
// lock only protects against a concurrent Stats or LatestResult reader,
// not against interleaved frame processing.
type Pipeline struct {
	mu       sync.Mutex
	tracker  *Tracker
	analyzer *CollisionAnalyzer
	lanes    *LaneTracker
	perf     perfWindow
	frame    uint64
	latest   Latest[FrameResult]
}

// NewPipeline assembles the stages and ties the analyzer's history
// eviction to the tracker's track lifecycle.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		tracker:  NewTracker(cfg.Tracker, &cfg.Kinematics),
		analyzer: NewCollisionAnalyzer(cfg.Analyzer),
		lanes:    NewLaneTracker(cfg.LaneChangeThresholdPx),
	}
	p.tracker.OnEvict(p.analyzer.Evict)
	return p
}

// ProcessFrame runs one full frame through the chain. Empty detections
// still advance and age every track, and the result always carries a
// well-formed risk verdict.
func (p *Pipeline) ProcessFrame(in FrameInput) FrameResult {
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.frame++
	ts := in.Timestamp
	if ts.IsZero() {
		ts = start
	}

	tracks := p.tracker.Update(in.Detections, ts)
	laneInfo := p.lanes.Observe(in.LaneBoundaries, in.FrameWidth, in.FrameHeight)
	risk := p.analyzer.Analyze(tracks, laneInfo, ts)

	elapsed := time.Since(start)
	p.perf.record(elapsed)

	result := FrameResult{
		Frame:     p.frame,
		Timestamp: ts,
		Tracks:    tracks,
		Lanes:     laneInfo,
		Risk:      risk,
		Elapsed:   elapsed,
		ElapsedMs: float64(elapsed) / float64(time.Millisecond),
	}
	p.latest.Publish(result)
	return result
}

// LatestResult returns the most recently produced frame result without
// blocking, for readers outside the frame loop.
func (p *Pipeline) LatestResult() (FrameResult, bool) {
	return p.latest.Peek()
}

// ActiveTracks returns snapshots of every live track, confirmed or not.
func (p *Pipeline) ActiveTracks() []TrackSnapshot {
	return p.tracker.ActiveTracks()
}

// Stats reports the rolling per-frame latency window plus structural
// counters.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PipelineStats{
		Perf:              p.perf.stats(),
		ActiveTracks:      p.tracker.TrackCount(),
		HistorySize:       p.analyzer.HistorySize(),
		DroppedDetections: p.tracker.DroppedDetections(),
	}
}

// PipelineStats is the aggregate health snapshot exposed over the API.
type PipelineStats struct {
	Perf              PerfStats `json:"perf"`
	ActiveTracks      int       `json:"active_tracks"`
	HistorySize       int       `json:"history_size"`
	DroppedDetections int64     `json:"dropped_detections"`
}
