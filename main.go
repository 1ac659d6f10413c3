package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/drivewise/api"
	"github.com/banshee-data/drivewise/internal/config"
	"github.com/banshee-data/drivewise/internal/db"
	"github.com/banshee-data/drivewise/internal/fcw"
	"github.com/banshee-data/drivewise/internal/ingest"
	"github.com/banshee-data/drivewise/internal/monitor"
	"github.com/banshee-data/drivewise/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode (replay fixtures instead of live ingest)")
	listen     = flag.String("listen", ":8080", "Listen address")
	udpListen  = flag.String("udp", ":4040", "UDP address for frame ingest")
	dbFile     = flag.String("db", "drivewise.db", "Path to the sqlite database")
	configPath = flag.String("config", "", "Path to a tuning config JSON (defaults apply when empty)")
	replayPath = flag.String("replay", "fixtures.jsonl", "Replay file for dev mode")
	replayFPS  = flag.Float64("fps", 25, "Replay frame rate in dev mode (0 = as fast as possible)")
)

func loadTuning() *config.TuningConfig {
	if *configPath != "" {
		cfg, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		return cfg
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		cfg, err := config.LoadTuningConfig(config.DefaultConfigPath)
		if err != nil {
			log.Fatalf("failed to load tuning defaults: %v", err)
		}
		return cfg
	}
	return config.EmptyTuningConfig()
}

// Main
func main() {
	// Subcommands run before flag parsing claims the arguments.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrateCommand(os.Args[2:])
		return
	}

	flag.Parse()

	log.Printf("drivewise %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := loadTuning()
	pipeline := fcw.NewPipeline(tuning.PipelineConfig())

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	source := *udpListen
	if *devMode {
		source = *replayPath
	}
	recorder, err := db.NewRecorder(database, source)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	log.Printf("recording session %s", recorder.SessionID())

	mon := monitor.NewMonitor()
	onResult := func(res fcw.FrameResult) {
		recorder.Record(res)
		mon.Observe(res)
	}

	// Create a wait group for the HTTP server and ingest routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var listener *ingest.UDPListener
	if *devMode {
		// Dev mode replays a recorded detection file at the configured
		// frame rate instead of listening for live frames.
		wg.Add(1)
		go func() {
			defer wg.Done()
			interval := time.Duration(0)
			if *replayFPS > 0 {
				interval = time.Duration(float64(time.Second) / *replayFPS)
			}
			frames, err := ingest.ReplayFile(ctx, ingest.ReplayConfig{
				Path:          *replayPath,
				FrameInterval: interval,
				Loop:          true,
				Sink:          pipeline,
				OnResult:      onResult,
			})
			if err != nil && err != context.Canceled {
				log.Printf("replay terminated: %v", err)
			}
			log.Printf("replay routine terminated after %d frames", frames)
		}()
	} else {
		listener = ingest.NewUDPListener(ingest.UDPListenerConfig{
			Address:  *udpListen,
			Sink:     pipeline,
			OnResult: onResult,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("failed to run UDP listener: %v", err)
			}
			log.Print("ingest routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)
		mon.Attach(mux)

		var ingestStats *ingest.Stats
		if listener != nil {
			ingestStats = listener.Stats()
		}
		apiMux := api.NewServer(pipeline, database, tuning, ingestStats).ServeMux()
		mux.Handle("/", apiMux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	if err := recorder.Close(); err != nil {
		log.Printf("failed to end session: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
