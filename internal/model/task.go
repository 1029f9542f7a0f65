// Package model defines stewardx's durable data model: Task,
// ExecutionReport and TaskError, plus the ephemeral OutputEvent.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Task is the durable definition of a scheduled unit of work.
type Task struct {
	ID uuid.UUID `json:"id"`

	Name      string `json:"name"`
	TaskType  string `json:"task_type"`  // workload kind tag, e.g. "cmd", "container"
	TaskProps string `json:"task_props"` // opaque serialized payload, interpreted only by the matching adapter
	Frequency string `json:"frequency"`  // textual frequency expression, e.g. "Every(* * * * * *)" or "Hook"

	// WebhookURL, when non-empty, is POSTed the ExecutionReport JSON after
	// every firing, best-effort (supplemental feature, see SPEC_FULL.md §1.3).
	WebhookURL string `json:"webhook_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LastExecution *time.Time `json:"last_execution,omitempty"`
	NextExecution *time.Time `json:"next_execution,omitempty"`

	ExecCount int64 `json:"exec_count"`
}

// ExecutionReport is the immutable record of a single firing.
type ExecutionReport struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
	Success   bool      `json:"success"`
	Output    []string  `json:"output"`
}

// OutputAsString joins the report's lines with newlines for storage.
func (r ExecutionReport) OutputAsString() string {
	return joinLines(r.Output)
}

// NewReportOutputFromString splits a newline-joined string back into lines.
// It mirrors OutputAsString to form a lossless round trip for output free
// of embedded newlines within a single line (spec.md §8).
func NewReportOutputFromString(s string) []string {
	return splitLines(s)
}

// TaskError is a non-fatal failure record associated with a task.
type TaskError struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
}

// OutputEvent is an ephemeral line of live output; never persisted.
type OutputEvent struct {
	TaskID    uuid.UUID `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
	Line      string    `json:"line"`
}
