package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleRiskChart renders a line chart of the frame risk score and the
// threatening/tracked object counts over the retained timeline. This is
// a debugging-only endpoint (no auth) for watching the analyzer without
// the full UI.
func (m *Monitor) handleRiskChart(w http.ResponseWriter, r *http.Request) {
	window := m.window()
	if len(window) == 0 {
		m.writeJSONError(w, http.StatusNotFound, "no frames observed yet")
		return
	}

	frames := make([]string, 0, len(window))
	scores := make([]opts.LineData, 0, len(window))
	tracks := make([]opts.LineData, 0, len(window))
	threats := make([]opts.LineData, 0, len(window))
	for _, s := range window {
		frames = append(frames, fmt.Sprintf("%d", s.Frame))
		scores = append(scores, opts.LineData{Value: s.MaxScore})
		tracks = append(tracks, opts.LineData{Value: s.Tracks})
		threats = append(threats, opts.LineData{Value: s.Threats})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "FCW Risk Timeline", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Collision Risk Timeline", Subtitle: fmt.Sprintf("frames=%d", len(window))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "score / count"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(frames)
	line.AddSeries("threat score", scores)
	line.AddSeries("tracks", tracks)
	line.AddSeries("threats", threats)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleLatencyChart renders the per-frame processing latency.
func (m *Monitor) handleLatencyChart(w http.ResponseWriter, r *http.Request) {
	window := m.window()
	if len(window) == 0 {
		m.writeJSONError(w, http.StatusNotFound, "no frames observed yet")
		return
	}

	frames := make([]string, 0, len(window))
	elapsed := make([]opts.LineData, 0, len(window))
	for _, s := range window {
		frames = append(frames, fmt.Sprintf("%d", s.Frame))
		elapsed = append(elapsed, opts.LineData{Value: s.ElapsedMs})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "FCW Frame Latency", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Per-Frame Processing Latency", Subtitle: "target: sub-40ms"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(frames)
	line.AddSeries("elapsed_ms", elapsed)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// dashboardHTML frames the debug charts side by side.
const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>FCW Debug Dashboard</title>
<style>body{background:#111;color:#ddd;font-family:sans-serif} iframe{border:0;width:100%;height:640px}</style>
</head>
<body>
<h2>FCW Debug Dashboard</h2>
<iframe src="/debug/fcw/risk"></iframe>
<iframe src="/debug/fcw/latency"></iframe>
</body>
</html>`

// handleDashboard renders a simple dashboard with iframes to the debug charts.
func (m *Monitor) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}
