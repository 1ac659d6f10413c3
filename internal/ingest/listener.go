package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/drivewise/internal/fcw"
)

// FrameSink consumes one frame's detections and lane geometry.
// *fcw.Pipeline is the production implementation.
type FrameSink interface {
	ProcessFrame(fcw.FrameInput) fcw.FrameResult
}

// Stats tracks datagram counters for the listener.
type Stats struct {
	mu      sync.Mutex
	packets uint64
	bytes   uint64
	dropped uint64
	frames  uint64
}

func (s *Stats) addPacket(n int) {
	s.mu.Lock()
	s.packets++
	s.bytes += uint64(n)
	s.mu.Unlock()
}

func (s *Stats) addDropped() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func (s *Stats) addFrame() {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

// LogStats writes one summary line of the counters.
func (s *Stats) LogStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Printf("ingest stats: %d packets (%d bytes), %d frames processed, %d dropped",
		s.packets, s.bytes, s.frames, s.dropped)
}

// Snapshot returns the counters for the API.
func (s *Stats) Snapshot() (packets, bytes, frames, dropped uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.bytes, s.frames, s.dropped
}

// UDPListener receives per-frame detection payloads as JSON datagrams
// and feeds them to the pipeline. One datagram carries one frame.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	sink        FrameSink
	onResult    func(fcw.FrameResult)
	stats       *Stats

	connMu sync.RWMutex
	conn   *net.UDPConn
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Sink        FrameSink
	OnResult    func(fcw.FrameResult) // Optional, invoked after every processed frame
}

// NewUDPListener creates a listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	rcvBuf := config.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = 1 << 20
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      rcvBuf,
		logInterval: logInterval,
		sink:        config.Sink,
		onResult:    config.OnResult,
		stats:       &Stats{},
	}
}

// Stats returns the listener's counter set.
func (l *UDPListener) Stats() *Stats {
	return l.stats
}

// Start begins listening for frame datagrams and blocks until the
// context is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.setConn(conn)
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		log.Printf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
	}

	log.Printf("UDP listener started on %s with receive buffer %d bytes", l.address, l.rcvBuf)

	go l.startStatsLogging(ctx)

	// Detection payloads for a busy frame stay well under 64KB.
	buffer := make([]byte, 65536)
	var deadlineErrLogged bool

	for {
		select {
		case <-ctx.Done():
			log.Print("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Set read deadline to allow checking context cancellation
			if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
				if !deadlineErrLogged {
					log.Printf("failed to set read deadline: %v", err)
					deadlineErrLogged = true
				}
			}

			n, raddr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue // Continue on timeout to check context
				}
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return nil
				}
				log.Printf("UDP read error: %v", err)
				continue
			}

			if err := l.handlePacket(buffer[:n]); err != nil {
				log.Printf("Error handling packet from %v: %v", raddr, err)
			}
		}
	}
}

// setConn stores the active socket under the connection lock.
func (l *UDPListener) setConn(conn *net.UDPConn) {
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
}

// handlePacket decodes one frame datagram and runs it through the sink.
// A payload that fails to decode is dropped; it never aborts the loop.
func (l *UDPListener) handlePacket(packet []byte) error {
	l.stats.addPacket(len(packet))

	var in fcw.FrameInput
	if err := json.Unmarshal(packet, &in); err != nil {
		l.stats.addDropped()
		return fmt.Errorf("failed to decode frame payload: %w", err)
	}

	result := l.sink.ProcessFrame(in)
	l.stats.addFrame()
	if l.onResult != nil {
		l.onResult(result)
	}
	return nil
}

// startStatsLogging periodically logs packet statistics.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	// Trigger an initial stats report shortly after startup to avoid a
	// long silence on first-run. Then continue on the configured interval.
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		l.stats.LogStats()
	}

	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}
