package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one contiguous run of the pipeline against a single input
// source (camera, replay file, UDP feed).
type Session struct {
	SessionID  string     `json:"session_id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	FrameCount int64      `json:"frame_count"`
}

// NewSessionID generates a fresh session identifier.
func NewSessionID() string {
	return "ses_" + uuid.NewString()
}

// CreateSession registers a new session and returns its identifier.
func (db *DB) CreateSession(source string) (string, error) {
	id := NewSessionID()
	_, err := db.Exec(
		"INSERT INTO sessions (session_id, source) VALUES (?, ?)",
		id, source,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time and final frame count.
func (db *DB) EndSession(sessionID string, frameCount int64) error {
	res, err := db.Exec(
		"UPDATE sessions SET ended_at = CURRENT_TIMESTAMP, frame_count = ? WHERE session_id = ?",
		frameCount, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no such session: %s", sessionID)
	}
	return nil
}

// Sessions lists the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT session_id, source, started_at, ended_at, frame_count
		FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var ended sql.NullTime
		if err := rows.Scan(&s.SessionID, &s.Source, &s.StartedAt, &ended, &s.FrameCount); err != nil {
			return nil, err
		}
		if ended.Valid {
			s.EndedAt = &ended.Time
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// SessionStats aggregates a session's persisted frame verdicts.
type SessionStats struct {
	SessionID      string  `json:"session_id"`
	Frames         int64   `json:"frames"`
	MaxThreatScore int64   `json:"max_threat_score"`
	AvgElapsedMs   float64 `json:"avg_elapsed_ms"`
	MaxElapsedMs   float64 `json:"max_elapsed_ms"`
	CriticalFrames int64   `json:"critical_frames"`
	HighFrames     int64   `json:"high_frames"`
	ThreatEvents   int64   `json:"threat_events"`
	Tracks         int64   `json:"tracks"`
}

// Stats computes the session aggregate from the persisted rows.
func (db *DB) Stats(sessionID string) (*SessionStats, error) {
	s := &SessionStats{SessionID: sessionID}
	err := db.QueryRow(
		`SELECT COUNT(*),
			COALESCE(MAX(max_threat_score), 0),
			COALESCE(AVG(elapsed_ms), 0),
			COALESCE(MAX(elapsed_ms), 0),
			COALESCE(SUM(risk_level = 'Critical'), 0),
			COALESCE(SUM(risk_level = 'High'), 0)
		FROM frame_risks WHERE session_id = ?`,
		sessionID,
	).Scan(&s.Frames, &s.MaxThreatScore, &s.AvgElapsedMs, &s.MaxElapsedMs, &s.CriticalFrames, &s.HighFrames)
	if err != nil {
		return nil, err
	}

	if err := db.QueryRow(
		"SELECT COUNT(*) FROM threat_events WHERE session_id = ?", sessionID,
	).Scan(&s.ThreatEvents); err != nil {
		return nil, err
	}
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM track_summaries WHERE session_id = ?", sessionID,
	).Scan(&s.Tracks); err != nil {
		return nil, err
	}

	return s, nil
}
