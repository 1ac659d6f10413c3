package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/drivewise/internal/fcw"
)

// defaultCapacity bounds the in-memory timeline. At 25 fps this is
// roughly four minutes of history.
const defaultCapacity = 6000

// sample is one frame's worth of monitor state.
type sample struct {
	Frame     uint64
	Timestamp time.Time
	RiskLevel fcw.RiskLevel
	MaxScore  int
	Tracks    int
	Threats   int
	ElapsedMs float64
}

// Monitor keeps a bounded timeline of frame results and renders
// debugging charts over it. It is fed from the pipeline's result
// callback and read from HTTP handlers, so all access is locked.
type Monitor struct {
	mu      sync.Mutex
	samples []sample
	head    int
	size    int
}

// NewMonitor creates a monitor with the default timeline capacity.
func NewMonitor() *Monitor {
	return &Monitor{samples: make([]sample, defaultCapacity)}
}

// Observe appends one frame result to the timeline.
func (m *Monitor) Observe(res fcw.FrameResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[m.head] = sample{
		Frame:     res.Frame,
		Timestamp: res.Timestamp,
		RiskLevel: res.Risk.RiskLevel,
		MaxScore:  res.Risk.MaxThreatScore,
		Tracks:    len(res.Tracks),
		Threats:   len(res.Risk.Threats),
		ElapsedMs: res.ElapsedMs,
	}
	m.head = (m.head + 1) % len(m.samples)
	if m.size < len(m.samples) {
		m.size++
	}
}

// window returns the retained samples oldest first.
func (m *Monitor) window() []sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sample, 0, m.size)
	start := m.head - m.size
	if start < 0 {
		start += len(m.samples)
	}
	for i := 0; i < m.size; i++ {
		out = append(out, m.samples[(start+i)%len(m.samples)])
	}
	return out
}

// Attach mounts the debug chart endpoints on the mux.
func (m *Monitor) Attach(mux *http.ServeMux) {
	mux.HandleFunc("/debug/fcw", m.handleDashboard)
	mux.HandleFunc("/debug/fcw/risk", m.handleRiskChart)
	mux.HandleFunc("/debug/fcw/latency", m.handleLatencyChart)
	mux.HandleFunc("/debug/fcw/timeline", m.handleTimelineJSON)
}

func (m *Monitor) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleTimelineJSON dumps the raw timeline for external tooling.
func (m *Monitor) handleTimelineJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	window := m.window()

	type point struct {
		Frame     uint64  `json:"frame"`
		RiskLevel string  `json:"risk_level"`
		MaxScore  int     `json:"max_score"`
		Tracks    int     `json:"tracks"`
		Threats   int     `json:"threats"`
		ElapsedMs float64 `json:"elapsed_ms"`
	}
	out := make([]point, 0, len(window))
	for _, s := range window {
		out = append(out, point{
			Frame:     s.Frame,
			RiskLevel: s.RiskLevel.String(),
			MaxScore:  s.MaxScore,
			Tracks:    s.Tracks,
			Threats:   s.Threats,
			ElapsedMs: s.ElapsedMs,
		})
	}
	json.NewEncoder(w).Encode(out)
}
