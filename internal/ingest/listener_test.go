package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/drivewise/internal/fcw"
)

func TestHandlePacket(t *testing.T) {
	t.Run("valid payload reaches the sink", func(t *testing.T) {
		sink := &stubSink{}
		var got *fcw.FrameResult
		l := NewUDPListener(UDPListenerConfig{
			Address:  "127.0.0.1:0",
			Sink:     sink,
			OnResult: func(r fcw.FrameResult) { got = &r },
		})

		payload, err := json.Marshal(testFrame(0))
		require.NoError(t, err)
		require.NoError(t, l.handlePacket(payload))

		require.Len(t, sink.frames, 1)
		require.NotNil(t, got)
		assert.Equal(t, uint64(1), got.Frame)

		packets, bytes, frames, dropped := l.Stats().Snapshot()
		assert.Equal(t, uint64(1), packets)
		assert.Equal(t, uint64(len(payload)), bytes)
		assert.Equal(t, uint64(1), frames)
		assert.Equal(t, uint64(0), dropped)
	})

	t.Run("undecodable payload is dropped", func(t *testing.T) {
		sink := &stubSink{}
		l := NewUDPListener(UDPListenerConfig{Address: "127.0.0.1:0", Sink: sink})

		err := l.handlePacket([]byte("not a frame"))
		assert.Error(t, err)
		assert.Empty(t, sink.frames)

		_, _, frames, dropped := l.Stats().Snapshot()
		assert.Equal(t, uint64(0), frames)
		assert.Equal(t, uint64(1), dropped)
	})
}

func TestNewUDPListenerDefaults(t *testing.T) {
	l := NewUDPListener(UDPListenerConfig{Address: ":0", Sink: &stubSink{}})
	assert.Equal(t, 1<<20, l.rcvBuf)
	assert.NotZero(t, l.logInterval)
}
