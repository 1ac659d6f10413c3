package fcw

// OncomingLane is the sentinel lane index for opposing traffic to the
// left of the frame, outside all detected lane boundaries.
const OncomingLane = -1

// LaneChangeDirection is the horizontal direction of a detected lane
// change, for ego or any tracked vehicle.
type LaneChangeDirection string

const (
	LaneChangeNone  LaneChangeDirection = "none"
	LaneChangeLeft  LaneChangeDirection = "left"
	LaneChangeRight LaneChangeDirection = "right"
)

// LaneSegment is one detected lane line in image coordinates.
type LaneSegment struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// MidX is the mean horizontal position of the segment's endpoints,
// used as the boundary's representative column.
func (s LaneSegment) MidX() float32 {
	return (s.X1 + s.X2) / 2
}

// LaneBoundary is a (left line, right line) pair delimiting one lane.
// Boundaries are ordered left to right; index i is lane i.
type LaneBoundary struct {
	Left  LaneSegment `json:"left"`
	Right LaneSegment `json:"right"`
}

// Contains reports whether the column x falls inside the boundary pair.
func (b LaneBoundary) Contains(x float32) bool {
	return b.Left.MidX() <= x && x <= b.Right.MidX()
}

// LaneInfo is the per-frame lane snapshot handed to the collision
// analyzer. It is recomputed fresh every frame; only the tracker that
// produced it carries state between frames.
type LaneInfo struct {
	Boundaries          []LaneBoundary      `json:"boundaries"`
	EgoLane             int                 `json:"ego_lane"`
	LaneChangeDetected  bool                `json:"lane_change_detected"`
	LaneChangeDirection LaneChangeDirection `json:"lane_change_direction"`
	FrameWidth          int                 `json:"frame_width"`
	FrameHeight         int                 `json:"frame_height"`
}

// VehicleLane maps a vehicle's bounding box onto a lane index. Vehicles
// outside every detected boundary resolve by frame side: left of centre
// is the oncoming sentinel, right of centre is the lane right of ego.
// With no boundaries at all everything collapses into lane 0.
func (li *LaneInfo) VehicleLane(box BBox) int {
	if len(li.Boundaries) == 0 {
		return 0
	}
	cx, _ := box.Center()
	for i, b := range li.Boundaries {
		if b.Contains(cx) {
			return i
		}
	}
	if cx < float32(li.FrameWidth)/2 {
		return OncomingLane
	}
	return li.EgoLane + 1
}

// egoHistoryLen and egoChangeWindow size the ego-position window used
// for lane-change detection: displacement is measured over the last
// egoChangeWindow frames out of egoHistoryLen retained.
const (
	egoHistoryLen   = 10
	egoChangeWindow = 5
)

// LaneTracker turns raw per-frame lane boundaries into a LaneInfo
// snapshot: it locates the ego lane and detects ego lane changes from
// its own short ego-position history. This is the only lane state that
// survives between frames.
//
// The camera is fixed at the frame centre, so ego's lateral motion shows
// up as the detected lane geometry shifting the opposite way. The
// tracked quantity is therefore ego's offset from its lane centre, not
// the raw frame column.
type LaneTracker struct {
	egoChangeThresholdPx float32
	egoOffsetHistory     []float32
}

// NewLaneTracker creates a tracker with the given lane-change pixel
// threshold for ego displacement.
func NewLaneTracker(egoChangeThresholdPx float32) *LaneTracker {
	return &LaneTracker{egoChangeThresholdPx: egoChangeThresholdPx}
}

// Observe builds the frame's LaneInfo from detected boundaries and the
// frame dimensions. Ego is assumed at the bottom centre of the frame.
// Zero boundaries yields the degenerate single-lane snapshot.
func (lt *LaneTracker) Observe(boundaries []LaneBoundary, frameWidth, frameHeight int) *LaneInfo {
	info := &LaneInfo{
		Boundaries:          boundaries,
		LaneChangeDirection: LaneChangeNone,
		FrameWidth:          frameWidth,
		FrameHeight:         frameHeight,
	}
	if len(boundaries) == 0 {
		return info
	}

	egoX := float32(frameWidth) / 2
	egoLaneCenter := egoX
	for i, b := range boundaries {
		if b.Contains(egoX) {
			info.EgoLane = i
			egoLaneCenter = (b.Left.MidX() + b.Right.MidX()) / 2
			break
		}
	}

	// Positive offset means ego sits right of its lane centre.
	offset := egoX - egoLaneCenter
	lt.egoOffsetHistory = append(lt.egoOffsetHistory, offset)
	if len(lt.egoOffsetHistory) > egoHistoryLen {
		lt.egoOffsetHistory = lt.egoOffsetHistory[1:]
	}

	if len(lt.egoOffsetHistory) >= egoChangeWindow {
		recent := lt.egoOffsetHistory[len(lt.egoOffsetHistory)-1] - lt.egoOffsetHistory[len(lt.egoOffsetHistory)-egoChangeWindow]
		if recent > lt.egoChangeThresholdPx || recent < -lt.egoChangeThresholdPx {
			info.LaneChangeDetected = true
			if recent > 0 {
				info.LaneChangeDirection = LaneChangeRight
			} else {
				info.LaneChangeDirection = LaneChangeLeft
			}
		}
	}
	return info
}
