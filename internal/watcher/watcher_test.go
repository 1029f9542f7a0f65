package watcher

import (
	"testing"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/bus"
	"github.com/gokayokyay/stewardx/internal/model"
)

func TestWatchExecution_LaunchError(t *testing.T) {
	w := New(bus.New(nil), nil)
	taskID := uuid.New()

	report := w.WatchExecution(taskID, nil, model.NewInvalidCmd("cannot tokenize"))

	if report.Success {
		t.Fatal("expected success=false on launch error")
	}
	if len(report.Output) != 1 || report.Output[0] != "InvalidCmd: cannot tokenize" {
		t.Fatalf("got output %v", report.Output)
	}
	if report.TaskID != taskID {
		t.Fatalf("got task id %v, want %v", report.TaskID, taskID)
	}
}

func TestWatchExecution_PublishesAndAssembles(t *testing.T) {
	outputs := bus.New(nil)
	sub := outputs.Subscribe()
	defer outputs.Unsubscribe(sub)

	w := New(outputs, nil)
	taskID := uuid.New()

	stream := make(chan string, 2)
	stream <- "line one"
	stream <- "line two"
	close(stream)

	report := w.WatchExecution(taskID, stream, nil)

	if !report.Success {
		t.Fatal("expected success=true at end of stream")
	}
	if len(report.Output) != 2 || report.Output[0] != "line one" || report.Output[1] != "line two" {
		t.Fatalf("got output %v", report.Output)
	}

	var got []string
	for i := 0; i < 2; i++ {
		evt := <-sub.Ch()
		got = append(got, evt.Line)
	}
	if len(got) != 2 || got[0] != "line one" || got[1] != "line two" {
		t.Fatalf("got published lines %v", got)
	}
}

func TestWatchExecution_EmptyStreamIsSuccessWithNoOutput(t *testing.T) {
	w := New(bus.New(nil), nil)
	taskID := uuid.New()

	stream := make(chan string)
	close(stream)

	report := w.WatchExecution(taskID, stream, nil)

	if !report.Success {
		t.Fatal("expected success=true")
	}
	if len(report.Output) != 0 {
		t.Fatalf("got output %v, want empty", report.Output)
	}
}
