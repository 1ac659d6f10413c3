package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drivewise/internal/fcw"
)

// stubSink records every frame it is handed.
type stubSink struct {
	frames []fcw.FrameInput
}

func (s *stubSink) ProcessFrame(in fcw.FrameInput) fcw.FrameResult {
	s.frames = append(s.frames, in)
	return fcw.FrameResult{Frame: uint64(len(s.frames))}
}

func testFrame(n int) fcw.FrameInput {
	return fcw.FrameInput{
		Detections: []fcw.Detection{
			{
				Box:        fcw.BBox{X1: float32(100 + n), Y1: 100, X2: float32(200 + n), Y2: 200},
				Confidence: 0.9,
				ClassName:  "car",
			},
		},
		FrameWidth:  640,
		FrameHeight: 480,
	}
}

// writeJSONL marshals the frames one per line, inserting rawLines
// verbatim at the end.
func writeJSONL(t *testing.T, frames []fcw.FrameInput, rawLines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for _, fr := range frames {
		b, err := json.Marshal(fr)
		require.NoError(t, err)
		_, err = f.Write(append(b, '\n'))
		require.NoError(t, err)
	}
	for _, line := range rawLines {
		_, err := f.WriteString(line + "\n")
		require.NoError(t, err)
	}
	return path
}

func TestReplayFile(t *testing.T) {
	t.Run("processes every well-formed frame", func(t *testing.T) {
		path := writeJSONL(t, []fcw.FrameInput{testFrame(0), testFrame(1), testFrame(2)})
		sink := &stubSink{}
		var results []fcw.FrameResult

		n, err := ReplayFile(context.Background(), ReplayConfig{
			Path:     path,
			Sink:     sink,
			OnResult: func(r fcw.FrameResult) { results = append(results, r) },
		})
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		require.Len(t, sink.frames, 3)
		assert.Len(t, results, 3)
		assert.InDelta(t, 102, sink.frames[2].Detections[0].Box.X1, 1e-6)
	})

	t.Run("skips malformed and blank lines", func(t *testing.T) {
		path := writeJSONL(t, []fcw.FrameInput{testFrame(0), testFrame(1)},
			"{not json", "")
		sink := &stubSink{}

		n, err := ReplayFile(context.Background(), ReplayConfig{Path: path, Sink: sink})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, sink.frames, 2)
	})

	t.Run("requires a sink", func(t *testing.T) {
		_, err := ReplayFile(context.Background(), ReplayConfig{Path: "unused.jsonl"})
		assert.Error(t, err)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := ReplayFile(context.Background(), ReplayConfig{
			Path: filepath.Join(t.TempDir(), "nope.jsonl"),
			Sink: &stubSink{},
		})
		assert.Error(t, err)
	})

	t.Run("cancelled context stops a paced replay", func(t *testing.T) {
		path := writeJSONL(t, []fcw.FrameInput{testFrame(0), testFrame(1)})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		n, err := ReplayFile(ctx, ReplayConfig{
			Path:          path,
			Sink:          &stubSink{},
			FrameInterval: time.Hour,
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, n)
	})
}
