package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the drivewise database and ensures the
// baseline schema exists. Schema evolution beyond the baseline is
// handled by the migration files under internal/db/migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			source            TEXT,
			started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ended_at          TIMESTAMP,
			frame_count       BIGINT DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS frame_risks (
			session_id        TEXT,
			frame             BIGINT,
			risk_level        TEXT,
			max_threat_score  BIGINT,
			total_objects     BIGINT,
			same_lane         BIGINT,
			oncoming          BIGINT,
			lane_change       BIGINT,
			elapsed_ms        DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE TABLE IF NOT EXISTS threat_events (
			session_id        TEXT,
			frame             BIGINT,
			track_id          BIGINT,
			class_name        TEXT,
			threat_type       TEXT,
			threat_score      BIGINT,
			distance_m        DOUBLE,
			ttc_sec           DOUBLE,
			vehicle_lane      BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE TABLE IF NOT EXISTS track_summaries (
			session_id        TEXT,
			track_id          BIGINT,
			class_name        TEXT,
			first_frame       BIGINT,
			last_frame        BIGINT,
			hits              BIGINT,
			min_distance_m    DOUBLE,
			max_speed_kmh     DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY(session_id, track_id)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// FrameRiskRow is one persisted frame-level risk verdict.
type FrameRiskRow struct {
	SessionID      string  `json:"session_id"`
	Frame          int64   `json:"frame"`
	RiskLevel      string  `json:"risk_level"`
	MaxThreatScore int64   `json:"max_threat_score"`
	TotalObjects   int64   `json:"total_objects"`
	SameLane       int64   `json:"same_lane"`
	Oncoming       int64   `json:"oncoming"`
	LaneChange     int64   `json:"lane_change"`
	ElapsedMs      float64 `json:"elapsed_ms"`
}

func (r *FrameRiskRow) String() string {
	return fmt.Sprintf(
		"Session: %s, Frame: %d, RiskLevel: %s, MaxThreatScore: %d, TotalObjects: %d, SameLane: %d, Oncoming: %d, LaneChange: %d, ElapsedMs: %f",
		r.SessionID,
		r.Frame,
		r.RiskLevel,
		r.MaxThreatScore,
		r.TotalObjects,
		r.SameLane,
		r.Oncoming,
		r.LaneChange,
		r.ElapsedMs,
	)
}

func (db *DB) RecordFrameRisk(row FrameRiskRow) error {
	_, err := db.Exec(
		`INSERT INTO frame_risks (
			session_id, frame, risk_level, max_threat_score, total_objects,
			same_lane, oncoming, lane_change, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.SessionID, row.Frame, row.RiskLevel, row.MaxThreatScore, row.TotalObjects,
		row.SameLane, row.Oncoming, row.LaneChange, row.ElapsedMs,
	)
	if err != nil {
		return err
	}
	return nil
}

// FrameRisks returns the most recent frame verdicts for a session,
// newest first.
func (db *DB) FrameRisks(sessionID string, limit int) ([]FrameRiskRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT session_id, frame, risk_level, max_threat_score, total_objects,
			same_lane, oncoming, lane_change, elapsed_ms
		FROM frame_risks WHERE session_id = ? ORDER BY frame DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FrameRiskRow
	for rows.Next() {
		var r FrameRiskRow
		if err := rows.Scan(
			&r.SessionID,
			&r.Frame,
			&r.RiskLevel,
			&r.MaxThreatScore,
			&r.TotalObjects,
			&r.SameLane,
			&r.Oncoming,
			&r.LaneChange,
			&r.ElapsedMs,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// ThreatEventRow is one persisted per-vehicle threat verdict. TTCSec is
// nil when the vehicle was not on a collision course.
type ThreatEventRow struct {
	SessionID   string   `json:"session_id"`
	Frame       int64    `json:"frame"`
	TrackID     int64    `json:"track_id"`
	ClassName   string   `json:"class_name"`
	ThreatType  string   `json:"threat_type"`
	ThreatScore int64    `json:"threat_score"`
	DistanceM   float64  `json:"distance_m"`
	TTCSec      *float64 `json:"ttc_sec"`
	VehicleLane int64    `json:"vehicle_lane"`
}

// RecordThreatEvents persists a frame's threat verdicts in one
// transaction so partial frames never land in the table.
func (db *DB) RecordThreatEvents(events []ThreatEventRow) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO threat_events (
			session_id, frame, track_id, class_name, threat_type,
			threat_score, distance_m, ttc_sec, vehicle_lane
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(
			e.SessionID, e.Frame, e.TrackID, e.ClassName, e.ThreatType,
			e.ThreatScore, e.DistanceM, e.TTCSec, e.VehicleLane,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ThreatEvents returns the most recent threat events for a session,
// newest first.
func (db *DB) ThreatEvents(sessionID string, limit int) ([]ThreatEventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT session_id, frame, track_id, class_name, threat_type,
			threat_score, distance_m, ttc_sec, vehicle_lane
		FROM threat_events WHERE session_id = ? ORDER BY frame DESC, threat_score DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThreatEventRow
	for rows.Next() {
		var e ThreatEventRow
		if err := rows.Scan(
			&e.SessionID,
			&e.Frame,
			&e.TrackID,
			&e.ClassName,
			&e.ThreatType,
			&e.ThreatScore,
			&e.DistanceM,
			&e.TTCSec,
			&e.VehicleLane,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// TrackSummaryRow accumulates per-track aggregates across a session.
type TrackSummaryRow struct {
	SessionID    string  `json:"session_id"`
	TrackID      int64   `json:"track_id"`
	ClassName    string  `json:"class_name"`
	FirstFrame   int64   `json:"first_frame"`
	LastFrame    int64   `json:"last_frame"`
	Hits         int64   `json:"hits"`
	MinDistanceM float64 `json:"min_distance_m"`
	MaxSpeedKmh  float64 `json:"max_speed_kmh"`
}

// UpsertTrackSummary folds one frame's observation of a track into its
// session summary row.
func (db *DB) UpsertTrackSummary(row TrackSummaryRow) error {
	_, err := db.Exec(
		`INSERT INTO track_summaries (
			session_id, track_id, class_name, first_frame, last_frame,
			hits, min_distance_m, max_speed_kmh
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, track_id) DO UPDATE SET
			last_frame = excluded.last_frame,
			hits = excluded.hits,
			min_distance_m = MIN(track_summaries.min_distance_m, excluded.min_distance_m),
			max_speed_kmh = MAX(track_summaries.max_speed_kmh, excluded.max_speed_kmh)`,
		row.SessionID, row.TrackID, row.ClassName, row.FirstFrame, row.LastFrame,
		row.Hits, row.MinDistanceM, row.MaxSpeedKmh,
	)
	return err
}

// TrackSummaries returns all track summaries for a session ordered by
// first appearance.
func (db *DB) TrackSummaries(sessionID string) ([]TrackSummaryRow, error) {
	rows, err := db.Query(
		`SELECT session_id, track_id, class_name, first_frame, last_frame,
			hits, min_distance_m, max_speed_kmh
		FROM track_summaries WHERE session_id = ? ORDER BY first_frame ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackSummaryRow
	for rows.Next() {
		var r TrackSummaryRow
		if err := rows.Scan(
			&r.SessionID,
			&r.TrackID,
			&r.ClassName,
			&r.FirstFrame,
			&r.LastFrame,
			&r.Hits,
			&r.MinDistanceM,
			&r.MaxSpeedKmh,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://drivewise.db", db.DB, &tailsql.DBOptions{
		Label: "DriveWise DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		// Send the backup file to the client
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := gzipWriter.Write([]byte{}); err != nil {
			// Need to write something to initialize the gzip header
			http.Error(w, fmt.Sprintf("Failed to initialize gzip writer: %v", err), http.StatusInternalServerError)
			return
		}

		// Copy the backup file content to the gzip writer
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
