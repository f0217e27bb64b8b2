// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventJobQueued    EventType = "JOB_QUEUED"
	EventJobStarted   EventType = "JOB_STARTED"
	EventJobCompleted EventType = "JOB_COMPLETED"
	EventJobFailed    EventType = "JOB_FAILED"
	EventStatusChange EventType = "STATUS_CHANGE"
)

// PrinterEvent represents an event in the system
type PrinterEvent struct {
	ID        uuid.UUID  `json:"id"`
	EventType EventType  `json:"event_type"`
	PrinterID string     `json:"printer_id"`
	Data      JSONObject `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
	Severity  string     `json:"severity"` // INFO, WARNING, ERROR
}

// JobEventData represents job-related event payloads
type JobEventData struct {
	JobID        uuid.UUID `json:"job_id"`
	JobType      JobType   `json:"job_type"`
	Status       JobStatus `json:"status"`
	BytesWritten int       `json:"bytes_written,omitempty"`
	DurationMs   *int      `json:"duration_ms,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// ToObject flattens the payload into an event data object
func (d JobEventData) ToObject() JSONObject {
	obj := JSONObject{
		"job_id":   d.JobID.String(),
		"job_type": string(d.JobType),
		"status":   string(d.Status),
	}
	if d.BytesWritten > 0 {
		obj["bytes_written"] = d.BytesWritten
	}
	if d.DurationMs != nil {
		obj["duration_ms"] = *d.DurationMs
	}
	if d.ErrorMessage != nil {
		obj["error_message"] = *d.ErrorMessage
	}
	return obj
}
