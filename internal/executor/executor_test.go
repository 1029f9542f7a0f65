package executor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/workload"
)

func TestExecute_CollectsLines(t *testing.T) {
	e := New(nil)
	defer e.Close()

	ex, execErr := workload.New(uuid.New(), workload.KindCommand, `{"command":"echo hello"}`)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, execErr := e.Execute(ctx, ex)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}

	var got []string
	for line := range stream {
		got = append(got, line)
	}
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v, want [hello]", got)
	}
}

func TestAbort_UnknownTaskReturnsFalse(t *testing.T) {
	e := New(nil)
	defer e.Close()

	ok, err := e.Abort(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected false for an unknown task id")
	}
}

func TestAbort_StopsInFlightWorkload(t *testing.T) {
	e := New(nil)
	defer e.Close()

	ex, execErr := workload.New(uuid.New(), workload.KindCommand, `{"command":"sleep 5"}`)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}

	ctx := context.Background()
	stream, execErr := e.Execute(ctx, ex)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}

	// Give the child a moment to actually start before aborting it.
	time.Sleep(50 * time.Millisecond)

	ok, err := e.Abort(ctx, ex.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected abort to find the in-flight firing")
	}

	select {
	case <-drain(stream):
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the stream to close after abort")
	}

	ids, err := e.ActiveTaskIDs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no active task ids after abort, got %v", ids)
	}
}

// drain returns a channel that closes once stream is fully consumed.
func drain(stream <-chan string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range stream {
		}
	}()
	return done
}

func TestActiveTaskIDs_TracksInFlightFirings(t *testing.T) {
	e := New(nil)
	defer e.Close()

	ex, execErr := workload.New(uuid.New(), workload.KindCommand, `{"command":"sleep 1"}`)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}

	ctx := context.Background()
	stream, execErr := e.Execute(ctx, ex)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}

	ids, err := e.ActiveTaskIDs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != ex.ID() {
		t.Fatalf("got %v, want [%v]", ids, ex.ID())
	}

	_, _ = e.Abort(ctx, ex.ID())
	<-drain(stream)
}
