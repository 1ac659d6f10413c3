package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/drivewise/internal/fcw"
)

// ReplayConfig controls JSONL replay. Each line of the input file is
// one fcw.FrameInput. When FrameInterval is zero frames are processed
// as fast as they decode; otherwise the reader paces to the interval,
// simulating a live camera.
type ReplayConfig struct {
	Path          string
	FrameInterval time.Duration
	Loop          bool
	Sink          FrameSink
	OnResult      func(fcw.FrameResult)
}

// ReplayFile feeds a recorded detection file through the sink. Returns
// the number of frames processed.
func ReplayFile(ctx context.Context, cfg ReplayConfig) (int, error) {
	if cfg.Sink == nil {
		return 0, fmt.Errorf("replay requires a frame sink")
	}

	total := 0
	for {
		n, err := replayOnce(ctx, cfg)
		total += n
		if err != nil {
			return total, err
		}
		if !cfg.Loop || ctx.Err() != nil {
			return total, ctx.Err()
		}
		log.Printf("replay: looping %s after %d frames", cfg.Path, n)
	}
}

func replayOnce(ctx context.Context, cfg ReplayConfig) (int, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	var ticker *time.Ticker
	if cfg.FrameInterval > 0 {
		ticker = time.NewTicker(cfg.FrameInterval)
		defer ticker.Stop()
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	frames := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var in fcw.FrameInput
		if err := json.Unmarshal(raw, &in); err != nil {
			// Bad lines are diagnostics, not fatal: skip and keep going.
			log.Printf("replay: skipping malformed frame at %s:%d: %v", cfg.Path, line, err)
			continue
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return frames, ctx.Err()
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return frames, ctx.Err()
		}

		result := cfg.Sink.ProcessFrame(in)
		frames++
		if cfg.OnResult != nil {
			cfg.OnResult(result)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return frames, fmt.Errorf("failed to read replay file: %w", err)
	}

	return frames, nil
}
