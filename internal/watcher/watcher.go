// Package watcher implements the TaskWatcher (spec.md §4.4): it
// consumes a single firing's output stream, republishes each line on
// the process-wide output broadcaster, and assembles the terminal
// ExecutionReport once the stream ends (or immediately, on launch
// error).
package watcher

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/bus"
	"github.com/gokayokyay/stewardx/internal/model"
)

// Watcher is a thin dispatcher: each firing it watches runs on its own
// goroutine, so the Watcher itself holds no per-firing state.
type Watcher struct {
	outputs *bus.OutputBus
	logger  *slog.Logger
}

// New creates a Watcher that republishes onto outputs.
func New(outputs *bus.OutputBus, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{outputs: outputs, logger: logger}
}

// WatchExecution consumes stream (or launchErr) for taskID and returns
// the assembled ExecutionReport once the firing is over.
//
// Aborting a firing mid-stream is not distinguished from the stream
// ending naturally: both produce success=true over whatever lines were
// seen before the child stopped (spec.md §4.3, "Abort race" — the
// source's current behavior; implementations MAY choose success=false
// on aborted runs, but this one keeps the simpler, always-a-report
// guarantee by not threading an abort signal through this layer).
func (w *Watcher) WatchExecution(taskID uuid.UUID, stream <-chan string, launchErr *model.TaskExecError) model.ExecutionReport {
	now := time.Now().UTC()

	if launchErr != nil {
		return model.ExecutionReport{
			ID:        uuid.New(),
			TaskID:    taskID,
			CreatedAt: now,
			Success:   false,
			Output:    []string{launchErr.Error()},
		}
	}

	var lines []string
	for line := range stream {
		w.publish(taskID, line)
		lines = append(lines, line)
	}

	return model.ExecutionReport{
		ID:        uuid.New(),
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
		Success:   true,
		Output:    lines,
	}
}

// publish forwards a single line to the output broadcaster. Delivery
// failure (a full subscriber buffer) is handled inside OutputBus.Publish
// itself and is non-fatal here (spec.md §4.4).
func (w *Watcher) publish(taskID uuid.UUID, line string) {
	w.outputs.Publish(model.OutputEvent{
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		Line:      line,
	})
}
