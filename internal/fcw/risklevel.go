package fcw

import "encoding/json"

// RiskLevel is the ordinal severity scale used throughout the pipeline,
// both for per-track standalone risk and for the frame-level verdict.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskLevelNames = [...]string{"None", "Low", "Medium", "High", "Critical"}

func (r RiskLevel) String() string {
	if r < RiskNone || r > RiskCritical {
		return "None"
	}
	return riskLevelNames[r]
}

// MarshalJSON encodes the level as its name so API payloads and stored
// rows stay human-readable.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the level name; unknown names decode as None.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRiskLevel(s)
	return nil
}

// ParseRiskLevel maps a level name back to its ordinal value.
// Unknown names map to RiskNone.
func ParseRiskLevel(s string) RiskLevel {
	for i, name := range riskLevelNames {
		if name == s {
			return RiskLevel(i)
		}
	}
	return RiskNone
}

// FrameRiskLevel maps a 0–100 threat score onto the frame-level ordinal
// scale using the fixed aggregation thresholds.
func FrameRiskLevel(maxScore int) RiskLevel {
	switch {
	case maxScore >= 80:
		return RiskCritical
	case maxScore >= 60:
		return RiskHigh
	case maxScore >= 40:
		return RiskMedium
	case maxScore >= 20:
		return RiskLow
	default:
		return RiskNone
	}
}
