package fcw

import (
	"log"
	"math"
	"sync"
	"time"
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	MaxTracks       int     // Maximum number of concurrent tracks
	MaxAge          int     // Frames without a match before eviction
	MinHits         int     // Matched frames needed before a track is emitted as confirmed
	IoUThreshold    float32 // Minimum IoU for an assignment to be accepted
	MinConfidence   float32 // Minimum detection confidence to spawn a track
	ProcessNoise    float32 // Process noise added to the covariance diagonal per predict (σ²)
	MeasurementNoise float32 // Measurement noise on the observed box center (σ²)
}

// DefaultTrackerConfig returns default tracker configuration tuned for
// ~25 fps dashcam footage.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxTracks:        100,
		MaxAge:           5,
		MinHits:          2,
		IoUThreshold:     0.3,
		MinConfidence:    0.5,
		ProcessNoise:     1.0,
		MeasurementNoise: 100.0,
	}
}

// Track represents a single tracked object. Its kinematic state is
// exclusively owned by the tracker's predict/update cycle; external
// consumers only ever see immutable TrackSnapshot values.
type Track struct {
	// Identity: monotonically increasing, never reused for process lifetime.
	ID int64

	// Kalman state (pixel frame, per-frame units): [cx, cy, vx, vy]
	X  float32
	Y  float32
	VX float32
	VY float32

	// Kalman covariance (4x4, row-major)
	P [16]float32

	// Last observed box; its extent is reused when coasting.
	Box BBox

	// Carried from the most recent matching detection.
	ClassName  string
	Confidence float32

	// Lifecycle counters
	Age             int // Frames since creation
	Hits            int // Frames with a successful match
	TimeSinceUpdate int // Frames since last match

	// Per-track physical estimator, recomputed on every matched update.
	Kin *Kinematics
}

// PredictedBox returns the box centered on the Kalman state with the last
// observed extent. This is the box detections are associated against.
func (tr *Track) PredictedBox() BBox {
	w := tr.Box.Width()
	h := tr.Box.Height()
	return BBox{
		X1: tr.X - w/2,
		Y1: tr.Y - h/2,
		X2: tr.X + w/2,
		Y2: tr.Y + h/2,
	}
}

// TrackSnapshot is the immutable per-frame view of a track handed to
// downstream consumers (risk analyzer, API, persistence).
type TrackSnapshot struct {
	TrackID         int64      `json:"track_id"`
	Box             BBox       `json:"bbox"`
	ClassName       string     `json:"class_name"`
	Confidence      float32    `json:"confidence"`
	Age             int        `json:"age"`
	Hits            int        `json:"hits"`
	TimeSinceUpdate int        `json:"time_since_update"`
	VelocityPx      [2]float32 `json:"velocity_px"` // Kalman velocity, px/frame
	DistanceM       float64    `json:"distance_m"`
	SpeedKmh        float64    `json:"speed_kmh"`
	RealVelocity    [2]float64 `json:"real_velocity_mps"`
	TTC             float64    `json:"-"` // +Inf is not JSON-encodable; see TTCSeconds
	Risk            RiskLevel  `json:"risk_level"`
}

// TTCSeconds returns the TTC as a pointer that is nil when no collision
// course exists, for JSON encoding.
func (s TrackSnapshot) TTCSeconds() *float64 {
	if math.IsInf(s.TTC, 1) {
		return nil
	}
	ttc := s.TTC
	return &ttc
}

// Tracker maintains the mapping from stable track identity to kinematic
// state, updated once per frame from a set of detections.
//
// The per-frame sequence is strict: predict, associate, update, spawn,
// prune, emit. Kalman state depends on the previous frame's posterior, so
// Update calls for successive frames must never interleave; the mutex
// guards against concurrent snapshot readers, not concurrent updates.
type Tracker struct {
	Config TrackerConfig

	tracks []*Track
	nextID int64

	kinCfg *KinematicsConfig

	// onEvict is invoked for every track removed by the max-age policy,
	// so side state keyed by track identity (the analyzer's history
	// arena) is evicted in step with the tracker's own lifecycle.
	onEvict func(id int64)

	droppedDetections int64 // Malformed detections skipped since start

	mu sync.RWMutex
}

// NewTracker creates a tracker. kinCfg is shared by every per-track
// estimator.
func NewTracker(config TrackerConfig, kinCfg *KinematicsConfig) *Tracker {
	return &Tracker{
		Config: config,
		tracks: make([]*Track, 0, config.MaxTracks),
		nextID: 1,
		kinCfg: kinCfg,
	}
}

// OnEvict registers a callback invoked with the track ID of every evicted
// track. Must be set before the first Update.
func (t *Tracker) OnEvict(fn func(id int64)) {
	t.onEvict = fn
}

// Update processes one frame of detections and returns the emitted track
// snapshots: confirmed tracks plus tracks matched this exact frame.
func (t *Tracker) Update(detections []Detection, ts time.Time) []TrackSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	detections = t.filterMalformed(detections)

	// Step 1: Predict. Every track advances one frame under the
	// constant-velocity model, matched or not.
	for _, tr := range t.tracks {
		t.predict(tr)
	}

	// Step 2: Associate detections to predicted boxes.
	assignments := t.associate(detections)

	// Step 3: Update matched tracks.
	for di, ti := range assignments {
		if ti < 0 {
			continue
		}
		t.update(t.tracks[ti], detections[di], ts)
	}

	// Step 4: Spawn new tracks from unmatched high-confidence detections.
	for di, ti := range assignments {
		if ti >= 0 {
			continue
		}
		det := detections[di]
		if det.Confidence > t.Config.MinConfidence && len(t.tracks) < t.Config.MaxTracks {
			t.initTrack(det, ts)
		}
	}

	// Step 5: Prune tracks past the max-age window. The bound is enforced
	// every frame regardless of upstream error rates.
	t.prune()

	// Step 6: Emit snapshots.
	return t.emit()
}

// filterMalformed drops detections whose boxes have no positive extent.
// Upstream detectors emit these transiently; dropping one must never
// abort the rest of the frame.
func (t *Tracker) filterMalformed(detections []Detection) []Detection {
	valid := detections[:0:0]
	for _, det := range detections {
		if !det.Box.IsValid() {
			t.droppedDetections++
			if t.droppedDetections%100 == 1 {
				log.Printf("tracker: dropped malformed detection box %+v (total dropped %d)", det.Box, t.droppedDetections)
			}
			continue
		}
		valid = append(valid, det)
	}
	return valid
}

// predict applies the Kalman prediction step with dt = 1 frame.
func (t *Tracker) predict(tr *Track) {
	// State transition for constant velocity, dt = 1 frame:
	// F = [1 0 1 0; 0 1 0 1; 0 0 1 0; 0 0 0 1]
	tr.X += tr.VX
	tr.Y += tr.VY

	// Covariance: P' = F*P*F^T + Q, computed directly.
	P := tr.P
	var FP [16]float32
	for j := 0; j < 4; j++ {
		FP[0*4+j] = P[0*4+j] + P[2*4+j]
		FP[1*4+j] = P[1*4+j] + P[3*4+j]
		FP[2*4+j] = P[2*4+j]
		FP[3*4+j] = P[3*4+j]
	}
	for i := 0; i < 4; i++ {
		tr.P[i*4+0] = FP[i*4+0] + FP[i*4+2]
		tr.P[i*4+1] = FP[i*4+1] + FP[i*4+3]
		tr.P[i*4+2] = FP[i*4+2]
		tr.P[i*4+3] = FP[i*4+3]
	}
	for i := 0; i < 4; i++ {
		tr.P[i*4+i] += t.Config.ProcessNoise
	}

	tr.Age++
	tr.TimeSinceUpdate++
}

// associate builds the IoU cost matrix and solves the optimal assignment.
// Returns a slice indexed by detection: the matched track index, or -1.
// Pairs whose IoU falls below the threshold are rejected even when the
// solver paired them.
func (t *Tracker) associate(detections []Detection) []int {
	assignments := make([]int, len(detections))
	for i := range assignments {
		assignments[i] = -1
	}
	if len(detections) == 0 || len(t.tracks) == 0 {
		return assignments
	}

	cost := make([][]float32, len(detections))
	for di, det := range detections {
		cost[di] = make([]float32, len(t.tracks))
		for ti, tr := range t.tracks {
			iou := IoU(det.Box, tr.PredictedBox())
			if iou < t.Config.IoUThreshold {
				cost[di][ti] = float32(hungarianInf)
			} else {
				cost[di][ti] = 1 - iou
			}
		}
	}

	return HungarianAssign(cost)
}

// update applies the Kalman measurement update with the detection's box
// center and refreshes the carried detection fields and the estimator.
func (t *Tracker) update(tr *Track, det Detection, ts time.Time) {
	zX, zY := det.Box.Center()

	// Innovation
	yX := zX - tr.X
	yY := zY - tr.Y

	// Innovation covariance S = H*P*H^T + R with H extracting position.
	S00 := tr.P[0*4+0] + t.Config.MeasurementNoise
	S01 := tr.P[0*4+1]
	S10 := tr.P[1*4+0]
	S11 := tr.P[1*4+1] + t.Config.MeasurementNoise

	det2 := S00*S11 - S01*S10
	if det2 < 1e-6 {
		return // Singular covariance; skip this measurement
	}

	invS00 := S11 / det2
	invS01 := -S01 / det2
	invS10 := -S10 / det2
	invS11 := S00 / det2

	// Kalman gain K = P*H^T*S^-1 (4x2)
	var K [8]float32
	for i := 0; i < 4; i++ {
		K[i*2+0] = tr.P[i*4+0]*invS00 + tr.P[i*4+1]*invS10
		K[i*2+1] = tr.P[i*4+0]*invS01 + tr.P[i*4+1]*invS11
	}

	tr.X += K[0*2+0]*yX + K[0*2+1]*yY
	tr.Y += K[1*2+0]*yX + K[1*2+1]*yY
	tr.VX += K[2*2+0]*yX + K[2*2+1]*yY
	tr.VY += K[3*2+0]*yX + K[3*2+1]*yY

	// Covariance: P' = (I - K*H)*P
	var IminusKH [16]float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			identity := float32(0)
			if i == j {
				identity = 1
			}
			var kh float32
			if j == 0 {
				kh = K[i*2+0]
			} else if j == 1 {
				kh = K[i*2+1]
			}
			IminusKH[i*4+j] = identity - kh
		}
	}
	var newP [16]float32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float32
			for m := 0; m < 4; m++ {
				sum += IminusKH[i*4+m] * tr.P[m*4+j]
			}
			newP[i*4+j] = sum
		}
	}
	tr.P = newP

	tr.Box = det.Box
	tr.ClassName = det.ClassName
	tr.Confidence = det.Confidence
	tr.Hits++
	tr.TimeSinceUpdate = 0

	tr.Kin.Observe(ts, det.Box, det.ClassName)
}

// initTrack creates a new track with a fresh identity, default covariance
// and zero velocity.
func (t *Tracker) initTrack(det Detection, ts time.Time) *Track {
	cx, cy := det.Box.Center()

	tr := &Track{
		ID: t.nextID,
		X:  cx,
		Y:  cy,

		// High initial position/velocity uncertainty; the first few
		// measurement updates collapse it quickly.
		P: [16]float32{
			1000, 0, 0, 0,
			0, 1000, 0, 0,
			0, 0, 1000, 0,
			0, 0, 0, 1000,
		},

		Box:        det.Box,
		ClassName:  det.ClassName,
		Confidence: det.Confidence,
		Hits:       1,
		Kin:        NewKinematics(t.kinCfg),
	}
	t.nextID++

	tr.Kin.Observe(ts, det.Box, det.ClassName)

	t.tracks = append(t.tracks, tr)
	return tr
}

// prune permanently removes tracks whose TimeSinceUpdate exceeded the
// max-age window and notifies the eviction callback.
func (t *Tracker) prune() {
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.TimeSinceUpdate > t.Config.MaxAge {
			if t.onEvict != nil {
				t.onEvict(tr.ID)
			}
			continue
		}
		kept = append(kept, tr)
	}
	// Release pointers past the new length so evicted tracks can be GCed.
	for i := len(kept); i < len(t.tracks); i++ {
		t.tracks[i] = nil
	}
	t.tracks = kept
}

// emit produces snapshots for confirmed tracks and for tracks matched
// this exact frame.
func (t *Tracker) emit() []TrackSnapshot {
	out := make([]TrackSnapshot, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if tr.Hits >= t.Config.MinHits || tr.TimeSinceUpdate == 0 {
			out = append(out, t.snapshot(tr))
		}
	}
	return out
}

func (t *Tracker) snapshot(tr *Track) TrackSnapshot {
	box := tr.Box
	if tr.TimeSinceUpdate > 0 {
		box = tr.PredictedBox()
	}
	return TrackSnapshot{
		TrackID:         tr.ID,
		Box:             box,
		ClassName:       tr.ClassName,
		Confidence:      tr.Confidence,
		Age:             tr.Age,
		Hits:            tr.Hits,
		TimeSinceUpdate: tr.TimeSinceUpdate,
		VelocityPx:      [2]float32{tr.VX, tr.VY},
		DistanceM:       tr.Kin.DistanceM,
		SpeedKmh:        tr.Kin.SpeedKmh,
		RealVelocity:    tr.Kin.RealVelocity,
		TTC:             tr.Kin.TTC,
		Risk:            tr.Kin.Risk,
	}
}

// ActiveTracks returns snapshots of every live track regardless of
// confirmation state. Safe for concurrent readers.
func (t *Tracker) ActiveTracks() []TrackSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TrackSnapshot, 0, len(t.tracks))
	for _, tr := range t.tracks {
		out = append(out, t.snapshot(tr))
	}
	return out
}

// TrackCount returns the number of live tracks.
func (t *Tracker) TrackCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tracks)
}

// DroppedDetections returns the count of malformed detections skipped
// since the tracker was created.
func (t *Tracker) DroppedDetections() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.droppedDetections
}
