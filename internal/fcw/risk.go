package fcw

import (
	"math"
	"time"
)

// vehicleClasses are the detector classes the collision analyzer
// considers. Everything else (pedestrians, bicycles, ...) is still
// tracked and scored per-track, but excluded from lane-aware analysis.
var vehicleClasses = map[string]bool{
	"car":        true,
	"truck":      true,
	"bus":        true,
	"motorcycle": true,
}

// ThreatType classifies the lane relationship behind a collision threat.
type ThreatType string

const (
	ThreatNone       ThreatType = "none"
	ThreatSameLane   ThreatType = "same_lane"
	ThreatOncoming   ThreatType = "oncoming"
	ThreatLaneChange ThreatType = "lane_change"
)

// MovementDirection is the dominant direction of a vehicle's recent pixel
// displacement. "down" means toward the camera.
type MovementDirection string

const (
	MoveUnknown MovementDirection = "unknown"
	MoveLeft    MovementDirection = "left"
	MoveRight   MovementDirection = "right"
	MoveDown    MovementDirection = "down"
	MoveUp      MovementDirection = "up"
)

// MovementInfo summarises a vehicle's motion over the analyzer's retained
// position window. It is recomputed directly from the raw window ends,
// independent of the tracker's smoothed estimates.
type MovementInfo struct {
	Direction           MovementDirection   `json:"direction"`
	RelativeSpeedPx     float64             `json:"relative_speed_px"` // px/frame over the window
	IsApproaching       bool                `json:"is_approaching"`
	IsChangingLanes     bool                `json:"is_changing_lanes"`
	LaneChangeDirection LaneChangeDirection `json:"lane_change_direction"`
}

// ThreatAssessment is the per-(vehicle, frame) verdict.
type ThreatAssessment struct {
	Track       TrackSnapshot `json:"track"`
	IsThreat    bool          `json:"is_threat"`
	Type        ThreatType    `json:"threat_type"`
	Score       int           `json:"threat_score"` // 0–100
	DistanceM   float64       `json:"distance_m"`
	TTC         float64       `json:"-"` // +Inf when not on a collision course
	VehicleLane int           `json:"vehicle_lane"`
	Movement    MovementInfo  `json:"movement"`
}

// FrameRiskResult is the frame-level aggregate verdict.
type FrameRiskResult struct {
	RiskLevel         RiskLevel          `json:"risk_level"`
	MaxThreatScore    int                `json:"max_threat_score"`
	PrimaryThreat     *ThreatAssessment  `json:"primary_threat,omitempty"`
	Threats           []ThreatAssessment `json:"threatening_objects"`
	SameLaneThreats   int                `json:"same_lane_threats"`
	OncomingThreats   int                `json:"oncoming_threats"`
	LaneChangeThreats int                `json:"lane_change_threats"`
	TotalObjects      int                `json:"total_objects"`
	Recommendations   []string           `json:"recommendations"`
	AnalysisTime      time.Duration      `json:"-"`
}

// AnalyzerConfig holds the collision analyzer thresholds.
type AnalyzerConfig struct {
	CriticalDistanceM float64 // Same-lane score 90 below this
	HighDistanceM     float64 // Same-lane score 70 / oncoming gate below this
	MediumDistanceM   float64 // Threat consideration gate below this

	CriticalTTCSec float64 // +20 score bonus below this
	HighTTCSec     float64 // +10 score bonus below this

	HistoryLength   int     // Position window per vehicle (frames)
	EvictAfterAge   int     // Arena backstop: evict identities unseen this many frames
	LaneChangePx    float64 // Horizontal window displacement implying a lane change
	ApproachSpeedPx float64 // Pixel speed below which a same-lane vehicle counts as slow
	MinPixelSpeedPx float64 // Pixel speeds below this yield +Inf TTC
	PixelSpeedToMps float64 // Rough px/frame → m/s conversion for the analyzer's TTC
}

// DefaultAnalyzerConfig returns analyzer thresholds matching the tracker
// defaults (max age 5) and a 10-frame movement window.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		CriticalDistanceM: 10,
		HighDistanceM:     15,
		MediumDistanceM:   20,
		CriticalTTCSec:    2,
		HighTTCSec:        4,
		HistoryLength:     10,
		EvictAfterAge:     5,
		LaneChangePx:      20,
		ApproachSpeedPx:   2,
		MinPixelSpeedPx:   0.1,
		PixelSpeedToMps:   0.1,
	}
}

// CollisionAnalyzer decides, per vehicle and per frame, whether a tracked
// vehicle constitutes an actual collision threat given the current lane
// geometry, and aggregates the verdicts into a frame-level risk result.
//
// The only persistent state is the position-history arena keyed by track
// identity; everything else is a pure function of the frame's inputs.
type CollisionAnalyzer struct {
	cfg     AnalyzerConfig
	history *HistoryArena
	frame   uint64
}

// NewCollisionAnalyzer creates an analyzer with its own history arena.
func NewCollisionAnalyzer(cfg AnalyzerConfig) *CollisionAnalyzer {
	return &CollisionAnalyzer{
		cfg:     cfg,
		history: NewHistoryArena(cfg.HistoryLength),
	}
}

// Evict drops the position history for a track identity. Wire this to the
// tracker's eviction callback so both windows retire identities together.
func (ca *CollisionAnalyzer) Evict(id int64) {
	ca.history.Evict(id)
}

// HistorySize returns the number of identities retained in the arena.
func (ca *CollisionAnalyzer) HistorySize() int {
	return ca.history.Len()
}

// Analyze classifies every tracked vehicle against the current lane
// geometry and returns the frame verdict. Empty inputs produce a valid
// result with risk level None, never a nil result.
func (ca *CollisionAnalyzer) Analyze(tracks []TrackSnapshot, lanes *LaneInfo, ts time.Time) FrameRiskResult {
	start := time.Now()
	ca.frame++

	result := FrameRiskResult{
		RiskLevel:       RiskNone,
		Threats:         []ThreatAssessment{},
		Recommendations: []string{},
		TotalObjects:    len(tracks),
	}

	// Missing lane geometry degrades to a single-lane assumption.
	if lanes == nil {
		lanes = &LaneInfo{LaneChangeDirection: LaneChangeNone}
	}

	maxScore := 0
	var primary *ThreatAssessment

	for _, track := range tracks {
		if !vehicleClasses[lower(track.ClassName)] {
			continue
		}

		assessment := ca.assessVehicle(track, lanes, ts)
		if !assessment.IsThreat {
			continue
		}

		result.Threats = append(result.Threats, assessment)
		switch assessment.Type {
		case ThreatSameLane:
			result.SameLaneThreats++
		case ThreatOncoming:
			result.OncomingThreats++
		case ThreatLaneChange:
			result.LaneChangeThreats++
		}

		// First vehicle achieving the maximum wins ties.
		if assessment.Score > maxScore {
			maxScore = assessment.Score
			primary = &result.Threats[len(result.Threats)-1]
		}
	}

	// Backstop pruning for identities the eviction callback missed.
	ca.history.PruneAbsent(ca.frame, ca.cfg.EvictAfterAge)

	result.MaxThreatScore = maxScore
	result.PrimaryThreat = primary
	result.RiskLevel = FrameRiskLevel(maxScore)
	result.Recommendations = recommendations(result.RiskLevel, &result, lanes)
	result.AnalysisTime = time.Since(start)
	return result
}

// assessVehicle runs the full per-vehicle analysis: movement window,
// lane placement, analyzer TTC, and the threat classification policy.
func (ca *CollisionAnalyzer) assessVehicle(track TrackSnapshot, lanes *LaneInfo, ts time.Time) ThreatAssessment {
	cx, cy := track.Box.Center()
	ca.history.Push(track.TrackID, ca.frame, TrackPoint{Timestamp: ts, X: cx, Y: cy})

	movement := ca.analyzeMovement(track.TrackID)
	vehicleLane := lanes.VehicleLane(track.Box)
	ttc := ca.timeToCollision(track.DistanceM, movement)

	assessment := ThreatAssessment{
		Track:       track,
		Type:        ThreatNone,
		DistanceM:   track.DistanceM,
		TTC:         ttc,
		VehicleLane: vehicleLane,
		Movement:    movement,
	}

	ca.classify(&assessment, vehicleLane, lanes, movement)

	// TTC bonus for threats already on a fast collision course.
	if assessment.IsThreat {
		if ttc < ca.cfg.CriticalTTCSec {
			assessment.Score = min(100, assessment.Score+20)
		} else if ttc < ca.cfg.HighTTCSec {
			assessment.Score = min(100, assessment.Score+10)
		}
	}

	return assessment
}

// analyzeMovement classifies direction, speed and lane-change state from
// the raw ends of the retained window. Needs at least 3 samples.
func (ca *CollisionAnalyzer) analyzeMovement(id int64) MovementInfo {
	info := MovementInfo{
		Direction:           MoveUnknown,
		LaneChangeDirection: LaneChangeNone,
	}

	window := ca.history.Window(id)
	if len(window) < 3 {
		return info
	}

	dx := float64(window[len(window)-1].X - window[0].X)
	dy := float64(window[len(window)-1].Y - window[0].Y)

	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			info.Direction = MoveRight
		} else {
			info.Direction = MoveLeft
		}
	} else {
		if dy > 0 {
			info.Direction = MoveDown // toward the camera
			info.IsApproaching = true
		} else {
			info.Direction = MoveUp
		}
	}

	info.RelativeSpeedPx = math.Hypot(dx, dy) / float64(len(window))

	if math.Abs(dx) > ca.cfg.LaneChangePx {
		info.IsChangingLanes = true
		if dx > 0 {
			info.LaneChangeDirection = LaneChangeRight
		} else {
			info.LaneChangeDirection = LaneChangeLeft
		}
	}

	return info
}

// timeToCollision is the analyzer's own TTC, derived from the pixel
// movement window rather than the tracker's smoothed estimate.
func (ca *CollisionAnalyzer) timeToCollision(distanceM float64, movement MovementInfo) float64 {
	if !movement.IsApproaching {
		return math.Inf(1)
	}
	if movement.RelativeSpeedPx < ca.cfg.MinPixelSpeedPx {
		return math.Inf(1)
	}
	closingMps := movement.RelativeSpeedPx * ca.cfg.PixelSpeedToMps
	if closingMps <= 0 || distanceM <= 0 {
		return math.Inf(1)
	}
	ttc := distanceM / closingMps
	if ttc < 0.1 {
		ttc = 0.1
	}
	return ttc
}

// classify applies the mutually exclusive threat cases in priority order;
// the first matching case wins.
func (ca *CollisionAnalyzer) classify(a *ThreatAssessment, vehicleLane int, lanes *LaneInfo, mv MovementInfo) {
	egoLane := lanes.EgoLane
	dist := a.DistanceM

	switch {
	// Case 1: same lane. A threat only as a slow or stationary
	// obstruction ahead within the medium distance gate.
	case vehicleLane == egoLane:
		if dist < ca.cfg.MediumDistanceM &&
			(!mv.IsApproaching || mv.RelativeSpeedPx < ca.cfg.ApproachSpeedPx) {
			a.IsThreat = true
			a.Type = ThreatSameLane
			switch {
			case dist < ca.cfg.CriticalDistanceM:
				a.Score = 90
			case dist < ca.cfg.HighDistanceM:
				a.Score = 70
			default:
				a.Score = 50
			}
		}

	// Case 2: oncoming traffic. Only dangerous while ego is moving
	// leftward into its path.
	case vehicleLane == OncomingLane:
		if lanes.LaneChangeDetected && lanes.LaneChangeDirection == LaneChangeLeft &&
			dist < ca.cfg.HighDistanceM && mv.IsApproaching {
			a.IsThreat = true
			a.Type = ThreatOncoming
			a.Score = 95
		}

	// Case 3: adjacent-lane vehicle merging into ego's lane. An adjacent
	// vehicle holding its lane falls through to case 4, where ego's own
	// lane change into it can still make it a threat.
	case absInt(vehicleLane-egoLane) == 1 && mv.IsChangingLanes && mv.LaneChangeDirection == towardEgo(vehicleLane, egoLane):
		if dist < ca.cfg.MediumDistanceM {
			a.IsThreat = true
			a.Type = ThreatLaneChange
			a.Score = 60
		}

	// Case 4: ego merging into the vehicle's lane.
	case lanes.LaneChangeDetected:
		target := egoLane - 1
		if lanes.LaneChangeDirection == LaneChangeRight {
			target = egoLane + 1
		}
		if vehicleLane == target && dist < ca.cfg.MediumDistanceM {
			a.IsThreat = true
			a.Type = ThreatLaneChange
			a.Score = 70
		}
	}
}

// towardEgo is the horizontal direction a vehicle in vehicleLane must
// move to enter egoLane.
func towardEgo(vehicleLane, egoLane int) LaneChangeDirection {
	if vehicleLane < egoLane {
		return LaneChangeRight
	}
	return LaneChangeLeft
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
