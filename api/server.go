package api

import (
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/drivewise/internal/config"
	"github.com/banshee-data/drivewise/internal/db"
	"github.com/banshee-data/drivewise/internal/fcw"
	"github.com/banshee-data/drivewise/internal/httputil"
	"github.com/banshee-data/drivewise/internal/ingest"
	"github.com/banshee-data/drivewise/internal/units"
	"github.com/banshee-data/drivewise/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	pipeline *fcw.Pipeline
	db       *db.DB
	tuning   *config.TuningConfig
	ingest   *ingest.Stats
}

// NewServer wires the HTTP surface over the pipeline and the store.
// ingestStats may be nil when no UDP listener is running.
func NewServer(pipeline *fcw.Pipeline, database *db.DB, tuning *config.TuningConfig, ingestStats *ingest.Stats) *Server {
	return &Server{
		pipeline: pipeline,
		db:       database,
		tuning:   tuning,
		ingest:   ingestStats,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fcw/latest", s.showLatest)
	mux.HandleFunc("/api/fcw/tracks", s.listTracks)
	mux.HandleFunc("/api/fcw/stats", s.showStats)
	mux.HandleFunc("/api/fcw/params", s.showParams)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/session_stats", s.showSessionStats)
	mux.HandleFunc("/api/frame_risks", s.listFrameRisks)
	mux.HandleFunc("/api/threat_events", s.listThreatEvents)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the DriveWise Server!"))
}

// showLatest returns the most recent frame verdict, or 404 before the
// first frame has been processed.
func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	result, ok := s.pipeline.LatestResult()
	if !ok {
		httputil.NotFound(w, "no frames processed yet")
		return
	}
	httputil.WriteJSONOK(w, result)
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	tracks := s.pipeline.ActiveTracks()
	unit := r.URL.Query().Get("units")
	if unit == "" {
		httputil.WriteJSONOK(w, tracks)
		return
	}
	if !units.IsValid(unit) {
		httputil.BadRequest(w, fmt.Sprintf("invalid units %q; valid values: %s", unit, units.GetValidUnitsString()))
		return
	}

	type trackView struct {
		fcw.TrackSnapshot
		Speed      float64 `json:"speed"`
		SpeedUnits string  `json:"speed_units"`
	}
	views := make([]trackView, 0, len(tracks))
	for _, tr := range tracks {
		speedMps := math.Hypot(tr.RealVelocity[0], tr.RealVelocity[1])
		views = append(views, trackView{
			TrackSnapshot: tr,
			Speed:         units.ConvertSpeed(speedMps, unit),
			SpeedUnits:    unit,
		})
	}
	httputil.WriteJSONOK(w, views)
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	type statsResponse struct {
		Version  string            `json:"version"`
		GitSHA   string            `json:"git_sha"`
		Pipeline fcw.PipelineStats `json:"pipeline"`
		Ingest   *ingestStats      `json:"ingest,omitempty"`
	}
	resp := statsResponse{
		Version:  version.Version,
		GitSHA:   version.GitSHA,
		Pipeline: s.pipeline.Stats(),
	}
	if s.ingest != nil {
		packets, bytes, frames, dropped := s.ingest.Snapshot()
		resp.Ingest = &ingestStats{Packets: packets, Bytes: bytes, Frames: frames, Dropped: dropped}
	}
	httputil.WriteJSONOK(w, resp)
}

type ingestStats struct {
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
	Frames  uint64 `json:"frames"`
	Dropped uint64 `json:"dropped"`
}

// showParams exposes the effective tuning configuration.
func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.tuning)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sessions, err := s.db.Sessions(parseLimit(r, 50))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) showSessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httputil.BadRequest(w, "session_id is required")
		return
	}

	stats, err := s.db.Stats(sessionID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve session stats: %v", err))
		return
	}
	httputil.WriteJSONOK(w, stats)
}

func (s *Server) listFrameRisks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httputil.BadRequest(w, "session_id is required")
		return
	}

	risks, err := s.db.FrameRisks(sessionID, parseLimit(r, 100))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve frame risks: %v", err))
		return
	}
	httputil.WriteJSONOK(w, risks)
}

func (s *Server) listThreatEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httputil.BadRequest(w, "session_id is required")
		return
	}

	events, err := s.db.ThreatEvents(sessionID, parseLimit(r, 100))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve threat events: %v", err))
		return
	}
	httputil.WriteJSONOK(w, events)
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
