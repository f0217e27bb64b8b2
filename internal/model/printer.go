// internal/model/printer.go
package model

import (
	"time"
)

// ConnectionType represents how the printer is connected
type ConnectionType string

const (
	ConnectionTypeSerial  ConnectionType = "SERIAL"
	ConnectionTypeUSB     ConnectionType = "USB"
	ConnectionTypeTCP     ConnectionType = "TCP"
	ConnectionTypeConsole ConnectionType = "CONSOLE"
)

// PrinterStatus represents the current status of a configured printer
type PrinterStatus string

const (
	PrinterStatusIdle     PrinterStatus = "IDLE"
	PrinterStatusPrinting PrinterStatus = "PRINTING"
	PrinterStatusError    PrinterStatus = "ERROR"
)

// JSONObject is a free-form JSON object
type JSONObject map[string]interface{}

// Printer represents a configured printer and its runtime state
type Printer struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Model            string         `json:"model"`
	Encoding         string         `json:"encoding"`
	PaperWidth       int            `json:"paper_width"`
	ConnectionType   ConnectionType `json:"connection_type"`
	ConnectionConfig JSONObject     `json:"connection_config"`
	Status           PrinterStatus  `json:"status"`
	QueueLength      int            `json:"queue_length"`
	LastJobAt        *time.Time     `json:"last_job_at,omitempty"`
	LastError        *string        `json:"last_error,omitempty"`
	Stats            PrinterStats   `json:"stats"`
}

// IsAvailable reports whether the printer is accepting jobs without a
// recorded failure.
func (p *Printer) IsAvailable() bool {
	return p.Status != PrinterStatusError
}

// PrinterStats aggregates job outcomes for one printer
type PrinterStats struct {
	JobsCompleted int64 `json:"jobs_completed"`
	JobsFailed    int64 `json:"jobs_failed"`
	BytesWritten  int64 `json:"bytes_written"`
}
