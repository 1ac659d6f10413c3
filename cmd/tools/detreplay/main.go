// detreplay processes a recorded detection stream (JSONL or PCAP)
// through the full collision pipeline offline and prints a summary of
// the resulting risk verdicts. Useful for regression-checking tuning
// changes against captured drives.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/drivewise/internal/config"
	"github.com/banshee-data/drivewise/internal/db"
	"github.com/banshee-data/drivewise/internal/fcw"
	"github.com/banshee-data/drivewise/internal/ingest"
)

type replaySummary struct {
	Input           string         `json:"input"`
	Frames          int            `json:"frames"`
	MaxThreatScore  int            `json:"max_threat_score"`
	WorstFrame      uint64         `json:"worst_frame"`
	RiskLevelCounts map[string]int `json:"risk_level_counts"`
	ThreatCounts    map[string]int `json:"threat_counts"`
	AvgElapsedMs    float64        `json:"avg_elapsed_ms"`
	MaxElapsedMs    float64        `json:"max_elapsed_ms"`
	SessionID       string         `json:"session_id,omitempty"`
}

func main() {
	var (
		input      = flag.String("input", "", "JSONL detection file to replay")
		pcapFile   = flag.String("pcap", "", "PCAP capture to replay (requires -tags=pcap build)")
		udpPort    = flag.Int("port", 4040, "UDP port filter for PCAP replay")
		configPath = flag.String("config", "", "Path to a tuning config JSON")
		dbFile     = flag.String("db", "", "Optional sqlite database to record the replay session into")
		jsonOut    = flag.Bool("json", false, "Emit the summary as JSON")
	)
	flag.Parse()

	if (*input == "") == (*pcapFile == "") {
		log.Fatal("exactly one of -input or -pcap is required")
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}
	pipeline := fcw.NewPipeline(tuning.PipelineConfig())

	summary := replaySummary{
		RiskLevelCounts: map[string]int{},
		ThreatCounts:    map[string]int{},
	}

	var recorder *db.Recorder
	if *dbFile != "" {
		database, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		source := *input
		if source == "" {
			source = *pcapFile
		}
		recorder, err = db.NewRecorder(database, source)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		summary.SessionID = recorder.SessionID()
	}

	var totalElapsed float64
	onResult := func(res fcw.FrameResult) {
		summary.RiskLevelCounts[res.Risk.RiskLevel.String()]++
		for _, t := range res.Risk.Threats {
			summary.ThreatCounts[string(t.Type)]++
		}
		if res.Risk.MaxThreatScore > summary.MaxThreatScore {
			summary.MaxThreatScore = res.Risk.MaxThreatScore
			summary.WorstFrame = res.Frame
		}
		totalElapsed += res.ElapsedMs
		summary.MaxElapsedMs = math.Max(summary.MaxElapsedMs, res.ElapsedMs)
		if recorder != nil {
			recorder.Record(res)
		}
	}

	ctx := context.Background()
	var frames int
	var err error
	if *input != "" {
		summary.Input = *input
		frames, err = ingest.ReplayFile(ctx, ingest.ReplayConfig{
			Path:     *input,
			Sink:     pipeline,
			OnResult: onResult,
		})
	} else {
		summary.Input = *pcapFile
		frames, err = ingest.ReadPCAPFile(ctx, *pcapFile, *udpPort, pipeline, onResult)
	}
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	summary.Frames = frames
	if frames > 0 {
		summary.AvgElapsedMs = totalElapsed / float64(frames)
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Fatalf("failed to encode summary: %v", err)
		}
		return
	}

	fmt.Printf("Replayed %d frames from %s\n", summary.Frames, summary.Input)
	fmt.Printf("Max threat score: %d (frame %d)\n", summary.MaxThreatScore, summary.WorstFrame)
	fmt.Printf("Latency: avg %.2fms, max %.2fms\n", summary.AvgElapsedMs, summary.MaxElapsedMs)
	printCounts("Risk levels", summary.RiskLevelCounts)
	printCounts("Threat types", summary.ThreatCounts)
	if summary.SessionID != "" {
		fmt.Printf("Recorded session: %s\n", summary.SessionID)
	}
}

func printCounts(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("%s:\n", label)
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, counts[k])
	}
}
