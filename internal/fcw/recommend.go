package fcw

// recommendations produces the driver advisory strings for a frame
// verdict. Ordering is severity-first and deterministic.
func recommendations(level RiskLevel, r *FrameRiskResult, lanes *LaneInfo) []string {
	recs := []string{}
	if len(r.Threats) == 0 {
		return recs
	}

	switch level {
	case RiskCritical:
		recs = append(recs, "EMERGENCY BRAKE")
		if r.SameLaneThreats > 0 {
			recs = append(recs, "VEHICLE AHEAD TOO CLOSE")
		}
		if r.OncomingThreats > 0 {
			recs = append(recs, "ABORT LANE CHANGE - ONCOMING TRAFFIC")
		}

	case RiskHigh:
		if r.SameLaneThreats > 0 {
			recs = append(recs, "SLOW DOWN - FOLLOWING TOO CLOSE")
		}
		if r.LaneChangeThreats > 0 {
			recs = append(recs, "VEHICLE CHANGING LANES")
		}
		if r.OncomingThreats > 0 {
			recs = append(recs, "CAUTION - ONCOMING DURING LANE CHANGE")
		}

	case RiskMedium:
		if r.SameLaneThreats > 0 {
			recs = append(recs, "MAINTAIN SAFE DISTANCE")
		}
		if r.LaneChangeThreats > 0 {
			recs = append(recs, "MONITOR ADJACENT LANES")
		}
		if lanes.LaneChangeDetected {
			recs = append(recs, "LANE CHANGE IN PROGRESS")
		}

	case RiskLow:
		recs = append(recs, "STAY ALERT")
		if lanes.LaneChangeDetected {
			recs = append(recs, "COMPLETE LANE CHANGE SAFELY")
		}
	}

	return recs
}
