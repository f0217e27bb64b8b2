// internal/protocol/protocol.go
package protocol

import (
	"context"
	"sync"
	"time"

	"escpos-service/internal/model"
)

// Transport represents a synchronous byte channel to a printer
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Write sends data in full or returns an error
	Write(ctx context.Context, data []byte) error

	// Protocol information
	GetProtocolType() model.ConnectionType
	Stats() ProtocolStats
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

// statsRecorder is embedded by transports to share statistics bookkeeping
type statsRecorder struct {
	mu    sync.Mutex
	stats ProtocolStats
}

func (r *statsRecorder) Stats() ProtocolStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *statsRecorder) setConnected(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.IsConnected = connected
	if connected {
		r.stats.LastActivity = time.Now()
	}
}

func (r *statsRecorder) recordWrite(n int, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.BytesWritten += int64(n)
	r.stats.OperationCount++
	r.stats.LastActivity = time.Now()
	if r.stats.AverageLatency == 0 {
		r.stats.AverageLatency = latency
	} else {
		r.stats.AverageLatency = (r.stats.AverageLatency + latency) / 2
	}
}

func (r *statsRecorder) recordError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.ErrorCount++
}
