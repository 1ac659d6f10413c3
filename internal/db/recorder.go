package db

import (
	"log"
	"math"

	"github.com/banshee-data/drivewise/internal/fcw"
)

// Recorder persists pipeline frame results for one session. Persistence
// failures are logged and swallowed so storage trouble never disturbs
// the frame loop.
type Recorder struct {
	db        *DB
	sessionID string
	frames    int64
}

// NewRecorder opens a new session against the store.
func NewRecorder(database *DB, source string) (*Recorder, error) {
	id, err := database.CreateSession(source)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: database, sessionID: id}, nil
}

// SessionID returns the recorder's session identifier.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Record persists one frame result: the frame verdict, its threat
// events, and the per-track summary updates.
func (r *Recorder) Record(res fcw.FrameResult) {
	r.frames++

	if err := r.db.RecordFrameRisk(FrameRiskRow{
		SessionID:      r.sessionID,
		Frame:          int64(res.Frame),
		RiskLevel:      res.Risk.RiskLevel.String(),
		MaxThreatScore: int64(res.Risk.MaxThreatScore),
		TotalObjects:   int64(res.Risk.TotalObjects),
		SameLane:       int64(res.Risk.SameLaneThreats),
		Oncoming:       int64(res.Risk.OncomingThreats),
		LaneChange:     int64(res.Risk.LaneChangeThreats),
		ElapsedMs:      res.ElapsedMs,
	}); err != nil {
		log.Printf("failed to record frame risk for frame %d: %v", res.Frame, err)
	}

	if len(res.Risk.Threats) > 0 {
		events := make([]ThreatEventRow, 0, len(res.Risk.Threats))
		for _, t := range res.Risk.Threats {
			row := ThreatEventRow{
				SessionID:   r.sessionID,
				Frame:       int64(res.Frame),
				TrackID:     t.Track.TrackID,
				ClassName:   t.Track.ClassName,
				ThreatType:  string(t.Type),
				ThreatScore: int64(t.Score),
				DistanceM:   t.DistanceM,
				VehicleLane: int64(t.VehicleLane),
			}
			if !math.IsInf(t.TTC, 1) {
				ttc := t.TTC
				row.TTCSec = &ttc
			}
			events = append(events, row)
		}
		if err := r.db.RecordThreatEvents(events); err != nil {
			log.Printf("failed to record threat events for frame %d: %v", res.Frame, err)
		}
	}

	for _, tr := range res.Tracks {
		if err := r.db.UpsertTrackSummary(TrackSummaryRow{
			SessionID:    r.sessionID,
			TrackID:      tr.TrackID,
			ClassName:    tr.ClassName,
			FirstFrame:   int64(res.Frame),
			LastFrame:    int64(res.Frame),
			Hits:         int64(tr.Hits),
			MinDistanceM: tr.DistanceM,
			MaxSpeedKmh:  tr.SpeedKmh,
		}); err != nil {
			log.Printf("failed to record track summary for track %d: %v", tr.TrackID, err)
		}
	}
}

// Close ends the session.
func (r *Recorder) Close() error {
	return r.db.EndSession(r.sessionID, r.frames)
}
