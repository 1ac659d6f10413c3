package fcw

import (
	"math"
	"time"

	"github.com/banshee-data/drivewise/internal/units"
)

// ObjectSize holds the assumed real-world dimensions for a detector class,
// used by the pinhole-camera distance approximation.
type ObjectSize struct {
	HeightM float32 `json:"height_m"`
	WidthM  float32 `json:"width_m"`
}

// KinematicsConfig holds the physical-inference parameters shared by all
// per-track estimators.
type KinematicsConfig struct {
	FocalLengthPx float32               // Camera focal length in pixels
	ObjectSizes   map[string]ObjectSize // Known real-world sizes keyed by lowercase class name
	FallbackSize  ObjectSize            // Used when the class is not in ObjectSizes

	MinDistanceM     float64 // Lower clamp for distance estimates (metres)
	MaxDistanceM     float64 // Upper clamp for distance estimates (metres)
	DefaultDistanceM float64 // Conservative default when no method is usable

	VelocitySmoothingAlpha float32 // EMA weight of the newest velocity sample
	MaxHistoryLength       int     // Cap on the (timestamp, x, y) history

	MaxTTCSeconds      float64 // TTC beyond this is reported as +Inf
	MinClosingSpeedMps float64 // Closing speeds below this yield +Inf TTC

	// Standalone per-track risk brackets
	CriticalDistanceM float64
	HighDistanceM     float64
	MediumDistanceM   float64
	CriticalTTCSec    float64
	HighTTCSec        float64
	MediumTTCSec      float64
	HighSpeedKmh      float64
	MediumSpeedKmh    float64

	HighPriorityClasses   map[string]bool // Lowercase class names
	MediumPriorityClasses map[string]bool
}

// DefaultKinematicsConfig returns estimator parameters for a typical
// forward-facing dashcam at 800px focal length.
func DefaultKinematicsConfig() KinematicsConfig {
	return KinematicsConfig{
		FocalLengthPx: 800,
		ObjectSizes: map[string]ObjectSize{
			"car":        {HeightM: 1.5, WidthM: 1.8},
			"truck":      {HeightM: 3.5, WidthM: 2.5},
			"bus":        {HeightM: 3.2, WidthM: 2.5},
			"motorcycle": {HeightM: 1.2, WidthM: 0.8},
			"bicycle":    {HeightM: 1.0, WidthM: 0.6},
			"person":     {HeightM: 1.7, WidthM: 0.5},
		},
		FallbackSize:     ObjectSize{HeightM: 1.5, WidthM: 1.8},
		MinDistanceM:     0.5,
		MaxDistanceM:     100,
		DefaultDistanceM: 50,

		VelocitySmoothingAlpha: 0.3,
		MaxHistoryLength:       10,

		MaxTTCSeconds:      60,
		MinClosingSpeedMps: 0.1,

		CriticalDistanceM: 10,
		HighDistanceM:     15,
		MediumDistanceM:   20,
		CriticalTTCSec:    2,
		HighTTCSec:        4,
		MediumTTCSec:      6,
		HighSpeedKmh:      60,
		MediumSpeedKmh:    30,

		HighPriorityClasses:   map[string]bool{"person": true, "bicycle": true, "motorcycle": true},
		MediumPriorityClasses: map[string]bool{"car": true, "truck": true, "bus": true},
	}
}

// Distance-combination weights: height is usually the most reliable cue,
// width suffers from viewing-angle foreshortening, area is the most stable
// but assumes a frontal view.
const (
	distanceWeightHeight = 0.5
	distanceWeightWidth  = 0.3
	distanceWeightArea   = 0.2
)

// TrackPoint is a single sample in a track's position history.
type TrackPoint struct {
	Timestamp time.Time
	X         float32
	Y         float32
}

// Kinematics converts a track's 2D pixel geometry into real-world physical
// quantities. One instance is embedded per track and owned by the tracker's
// update cycle; all fields are recomputed on every matched observation.
type Kinematics struct {
	cfg *KinematicsConfig

	history []TrackPoint

	// Pixel-space motion (px/sec, EMA-smoothed)
	VelocityPx     [2]float32
	AccelerationPx [2]float32

	// Derived physical properties
	DistanceM    float64    // Estimated distance to object (metres)
	RealVelocity [2]float64 // World-frame velocity (m/s)
	SpeedKmh     float64    // Magnitude of RealVelocity in km/h
	TTC          float64    // Time to collision (seconds), +Inf when not closing
	Risk         RiskLevel  // Standalone lane-independent risk level
}

// NewKinematics creates an estimator bound to the shared config.
func NewKinematics(cfg *KinematicsConfig) *Kinematics {
	return &Kinematics{
		cfg:     cfg,
		history: make([]TrackPoint, 0, cfg.MaxHistoryLength),
		TTC:     math.Inf(1),
	}
}

// Observe feeds one matched observation and recomputes every derived
// quantity. Malformed geometry never aborts the update; each computation
// falls back to its conservative default instead.
func (k *Kinematics) Observe(ts time.Time, box BBox, className string) {
	cx, cy := box.Center()
	k.history = append(k.history, TrackPoint{Timestamp: ts, X: cx, Y: cy})
	if len(k.history) > k.cfg.MaxHistoryLength {
		k.history = k.history[len(k.history)-k.cfg.MaxHistoryLength:]
	}

	k.updatePixelMotion()
	k.DistanceM = k.estimateDistance(box, className)
	k.updateRealWorldMotion()
	k.updateTTC()
	k.Risk = k.assessRisk(className)
}

// History returns a copy of the retained position history, oldest first.
func (k *Kinematics) History() []TrackPoint {
	out := make([]TrackPoint, len(k.history))
	copy(out, k.history)
	return out
}

// updatePixelMotion computes smoothed pixel velocity and acceleration via
// finite differences over the most recent samples.
func (k *Kinematics) updatePixelMotion() {
	n := len(k.history)
	if n < 2 {
		return
	}

	p1 := k.history[n-2]
	p2 := k.history[n-1]
	dt := p2.Timestamp.Sub(p1.Timestamp).Seconds()
	if dt > 1e-3 {
		vx := float32(float64(p2.X-p1.X) / dt)
		vy := float32(float64(p2.Y-p1.Y) / dt)

		// EMA against the previous estimate to suppress detection jitter.
		alpha := k.cfg.VelocitySmoothingAlpha
		k.VelocityPx[0] = alpha*vx + (1-alpha)*k.VelocityPx[0]
		k.VelocityPx[1] = alpha*vy + (1-alpha)*k.VelocityPx[1]
	}

	if n < 3 {
		return
	}

	// Second finite difference for acceleration over successive intervals.
	p0 := k.history[n-3]
	dt1 := p1.Timestamp.Sub(p0.Timestamp).Seconds()
	dt2 := p2.Timestamp.Sub(p1.Timestamp).Seconds()
	if dt1 > 1e-3 && dt2 > 1e-3 {
		v1x := float32(float64(p1.X-p0.X) / dt1)
		v1y := float32(float64(p1.Y-p0.Y) / dt1)
		k.AccelerationPx[0] = float32(float64(k.VelocityPx[0]-v1x) / dt2)
		k.AccelerationPx[1] = float32(float64(k.VelocityPx[1]-v1y) / dt2)
	}
}

// estimateDistance combines height-, width- and area-based pinhole
// estimates into a weighted average, renormalising the weights over the
// subset of methods the box geometry allows.
func (k *Kinematics) estimateDistance(box BBox, className string) float64 {
	size, ok := k.cfg.ObjectSizes[lower(className)]
	if !ok {
		size = k.cfg.FallbackSize
	}

	focal := float64(k.cfg.FocalLengthPx)
	boxH := float64(box.Height())
	boxW := float64(box.Width())

	var weightedSum, weightTotal float64

	if boxH > 0 {
		weightedSum += distanceWeightHeight * (float64(size.HeightM) * focal / boxH)
		weightTotal += distanceWeightHeight
	}
	if boxW > 0 {
		weightedSum += distanceWeightWidth * (float64(size.WidthM) * focal / boxW)
		weightTotal += distanceWeightWidth
	}
	if boxH > 0 && boxW > 0 {
		realArea := float64(size.HeightM) * float64(size.WidthM)
		boxArea := boxH * boxW
		weightedSum += distanceWeightArea * (focal * math.Sqrt(realArea/boxArea))
		weightTotal += distanceWeightArea
	}

	if weightTotal == 0 {
		return k.cfg.DefaultDistanceM
	}

	d := weightedSum / weightTotal
	if d < k.cfg.MinDistanceM {
		d = k.cfg.MinDistanceM
	}
	if d > k.cfg.MaxDistanceM {
		d = k.cfg.MaxDistanceM
	}
	return d
}

// updateRealWorldMotion scales pixel velocity into metres/second using the
// current distance estimate and the camera focal length.
func (k *Kinematics) updateRealWorldMotion() {
	if k.DistanceM <= 0 || k.cfg.FocalLengthPx <= 0 {
		return
	}
	pixelToMeter := k.DistanceM / float64(k.cfg.FocalLengthPx)
	k.RealVelocity[0] = float64(k.VelocityPx[0]) * pixelToMeter
	k.RealVelocity[1] = float64(k.VelocityPx[1]) * pixelToMeter
	speedMps := math.Hypot(k.RealVelocity[0], k.RealVelocity[1])
	k.SpeedKmh = units.ConvertSpeed(speedMps, units.KMPH)
}

// updateTTC computes time-to-collision. TTC is only defined when the
// object is moving toward the bottom of the frame (toward the camera) and
// the closing speed is above the noise floor; otherwise it is +Inf.
func (k *Kinematics) updateTTC() {
	k.TTC = math.Inf(1)

	approaching := k.VelocityPx[1] > 0
	if !approaching {
		return
	}

	closing := math.Hypot(k.RealVelocity[0], k.RealVelocity[1])
	if closing <= k.cfg.MinClosingSpeedMps {
		return
	}
	if k.DistanceM <= 0 {
		return
	}

	ttc := k.DistanceM / closing
	if ttc > k.cfg.MaxTTCSeconds {
		return
	}
	k.TTC = ttc
}

// PredictPosition extrapolates the pixel position timeAhead seconds into
// the future using constant acceleration: p + v·t + ½·a·t².
func (k *Kinematics) PredictPosition(timeAhead float64) (x, y float64) {
	if len(k.history) == 0 {
		return 0, 0
	}
	last := k.history[len(k.history)-1]
	x = float64(last.X) + float64(k.VelocityPx[0])*timeAhead + 0.5*float64(k.AccelerationPx[0])*timeAhead*timeAhead
	y = float64(last.Y) + float64(k.VelocityPx[1])*timeAhead + 0.5*float64(k.AccelerationPx[1])*timeAhead*timeAhead
	return x, y
}

// assessRisk combines four ordinal risk factors into the standalone
// per-track level: distance, TTC, speed and object-class priority. The
// score weighs the worst factor heavily so one critical cue dominates.
func (k *Kinematics) assessRisk(className string) RiskLevel {
	factors := make([]float64, 0, 4)

	switch {
	case k.DistanceM <= k.cfg.CriticalDistanceM:
		factors = append(factors, 4)
	case k.DistanceM <= k.cfg.HighDistanceM:
		factors = append(factors, 3)
	case k.DistanceM <= k.cfg.MediumDistanceM:
		factors = append(factors, 2)
	default:
		factors = append(factors, 1)
	}

	switch {
	case k.TTC <= k.cfg.CriticalTTCSec:
		factors = append(factors, 4)
	case k.TTC <= k.cfg.HighTTCSec:
		factors = append(factors, 3)
	case k.TTC <= k.cfg.MediumTTCSec:
		factors = append(factors, 2)
	default:
		factors = append(factors, 1)
	}

	switch {
	case k.SpeedKmh > k.cfg.HighSpeedKmh:
		factors = append(factors, 3)
	case k.SpeedKmh > k.cfg.MediumSpeedKmh:
		factors = append(factors, 2)
	default:
		factors = append(factors, 1)
	}

	cls := lower(className)
	switch {
	case k.cfg.HighPriorityClasses[cls]:
		factors = append(factors, 3)
	case k.cfg.MediumPriorityClasses[cls]:
		factors = append(factors, 2)
	default:
		factors = append(factors, 1)
	}

	maxFactor := factors[0]
	sum := 0.0
	for _, f := range factors {
		if f > maxFactor {
			maxFactor = f
		}
		sum += f
	}
	score := 0.7*maxFactor + 0.3*(sum/float64(len(factors)))

	switch {
	case score >= 3.5:
		return RiskCritical
	case score >= 2.5:
		return RiskHigh
	case score >= 1.8:
		return RiskMedium
	case score >= 1.2:
		return RiskLow
	default:
		return RiskNone
	}
}

// lower is a fast ASCII lowercase for class names (detector labels are
// plain ASCII).
func lower(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
