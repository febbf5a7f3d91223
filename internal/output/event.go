package output

import "time"

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventBatchStarted  EventName = "batch_started"
	EventJobSubmitted  EventName = "job_submitted"
	EventJobProgress   EventName = "job_progress"
	EventJobFinished   EventName = "job_finished"
	EventJobFailed     EventName = "job_failed"
	EventJobSkipped    EventName = "job_skipped"
	EventBatchFinished EventName = "batch_finished"
	EventFileSaved     EventName = "file_saved"
)

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	JobID     string         `json:"job_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
