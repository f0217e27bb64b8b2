// internal/protocol/console_connection.go
package protocol

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"escpos-service/internal/model"
)

// DefaultBytesPerLine is the number of bytes per hex dump line
const DefaultBytesPerLine = 8

// ConsoleConnection implements Transport by hex dumping every write. It is
// used for dry runs and debugging without a printer attached.
type ConsoleConnection struct {
	statsRecorder

	config *ConsoleConfig
	out    io.Writer
	file   *os.File
	logger *zap.Logger
	mutex  sync.Mutex
	isOpen bool
}

// NewConsoleConnection creates a console connection. A nil out resolves
// config.Output on Open.
func NewConsoleConnection(config *ConsoleConfig, out io.Writer, logger *zap.Logger) *ConsoleConnection {
	if config.BytesPerLine <= 0 {
		config.BytesPerLine = DefaultBytesPerLine
	}
	return &ConsoleConnection{
		config: config,
		out:    out,
		logger: logger.With(zap.String("protocol", "console")),
	}
}

// Open resolves the output sink
func (cc *ConsoleConnection) Open(ctx context.Context) error {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	if cc.isOpen {
		return nil
	}

	if cc.out == nil {
		switch cc.config.Output {
		case "", "stdout":
			cc.out = os.Stdout
		case "stderr":
			cc.out = os.Stderr
		default:
			f, err := os.OpenFile(cc.config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open console output: %w", err)
			}
			cc.file = f
			cc.out = f
		}
	}

	cc.isOpen = true
	cc.setConnected(true)
	cc.logger.Debug("Console connection opened", zap.String("output", cc.config.Output))
	return nil
}

// Close releases an output file opened by Open
func (cc *ConsoleConnection) Close() error {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	if !cc.isOpen {
		return nil
	}

	if cc.file != nil {
		if err := cc.file.Close(); err != nil {
			return fmt.Errorf("failed to close console output: %w", err)
		}
		cc.file = nil
		cc.out = nil
	}

	cc.isOpen = false
	cc.setConnected(false)
	return nil
}

// IsOpen returns whether the connection is open
func (cc *ConsoleConnection) IsOpen() bool {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()
	return cc.isOpen
}

// Write dumps data as upper-case hex
func (cc *ConsoleConnection) Write(ctx context.Context, data []byte) error {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	if !cc.isOpen {
		return ErrNotOpen
	}

	startTime := time.Now()
	if _, err := io.WriteString(cc.out, HexDump(data, cc.config.BytesPerLine)); err != nil {
		cc.recordError()
		return fmt.Errorf("failed to write to console: %w", err)
	}
	cc.recordWrite(len(data), time.Since(startTime))
	return nil
}

// GetProtocolType returns the protocol type
func (cc *ConsoleConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeConsole
}

// HexDump formats data as space separated upper-case hex, perLine bytes
// per line, each line terminated by a newline.
func HexDump(data []byte, perLine int) string {
	if perLine <= 0 {
		perLine = DefaultBytesPerLine
	}

	var sb strings.Builder
	for i := 0; i < len(data); i += perLine {
		end := i + perLine
		if end > len(data) {
			end = len(data)
		}
		for j, b := range data[i:end] {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%02X", b)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
