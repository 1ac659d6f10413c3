//go:build !pcap
// +build !pcap

package ingest

import (
	"context"
	"fmt"

	"github.com/banshee-data/drivewise/internal/fcw"
)

// ReadPCAPFile is a stub implementation when PCAP support is disabled
// Build with -tags=pcap to enable PCAP file reading
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, sink FrameSink, onResult func(fcw.FrameResult)) (int, error) {
	return 0, fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to enable PCAP file reading")
}
