// Package executor implements the Executor actor (spec.md §4.3): it
// spawns Workload Adapters, owns the table of live handles, and honors
// abort requests. Its inbox is processed strictly sequentially so the
// handle table is never touched from two goroutines at once; the
// workloads it spawns run concurrently.
package executor

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
	"github.com/gokayokyay/stewardx/internal/workload"
)

// InboxCapacity bounds the Executor's message queue (spec.md §5).
const InboxCapacity = 32

// ExecuteResult is delivered once the workload has started (or failed
// to start); Stream is nil iff Err is non-nil.
type ExecuteResult struct {
	Stream <-chan string
	Err    *model.TaskExecError
}

// handle is the Executor's sole piece of owned state: one entry per
// in-flight firing (spec.md §4.3).
type handle struct {
	taskID uuid.UUID
	abort  chan struct{}
}

// message is implemented by every variant the Executor's inbox accepts.
type message interface {
	apply(ctx context.Context, e *Executor)
}

// Executor owns the live-handle table and dispatches workloads.
type Executor struct {
	logger *slog.Logger
	inbox  chan message
	done   chan struct{}

	handles map[uuid.UUID]*handle
}

// New starts the Executor's dispatch loop.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		logger:  logger,
		inbox:   make(chan message, InboxCapacity),
		done:    make(chan struct{}),
		handles: make(map[uuid.UUID]*handle),
	}
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer close(e.done)
	ctx := context.Background()
	for m := range e.inbox {
		m.apply(ctx, e)
	}
}

// Close stops accepting new messages and waits for the loop to drain.
func (e *Executor) Close() {
	close(e.inbox)
	<-e.done
}

func (e *Executor) send(ctx context.Context, m message) error {
	select {
	case e.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---- Execute ----

type executeMsg struct {
	ex    workload.Executable
	reply chan ExecuteResult
}

func (m executeMsg) apply(ctx context.Context, e *Executor) {
	h := &handle{
		taskID: m.ex.ID(),
		abort:  make(chan struct{}),
	}
	e.handles[h.taskID] = h

	go func() {
		stream, execErr := m.ex.Exec(ctx)
		if execErr != nil {
			e.finished(m.ex.ID())
			m.reply <- ExecuteResult{Err: execErr}
			return
		}

		// relay is the per-firing output channel handed to the caller
		// (the Reactor, which bridges it to the TaskWatcher and from
		// there to the process-wide broadcaster — spec.md §9's
		// two-level per-firing broadcaster). This goroutine is the
		// sole reader of the workload's own stream, so abort can race
		// it safely without two consumers fighting over one channel.
		relay := make(chan string)
		m.reply <- ExecuteResult{Stream: relay}

		streamDone := make(chan struct{})
		go func() {
			select {
			case <-h.abort:
				m.ex.Abort()
			case <-streamDone:
			}
		}()

		for line := range stream {
			relay <- line
		}
		close(streamDone)
		close(relay)
		e.finished(m.ex.ID())
	}()
}

// finished posts ExecutionFinished back onto the Executor's own inbox
// so handle removal still happens on the single owning goroutine.
func (e *Executor) finished(taskID uuid.UUID) {
	select {
	case e.inbox <- executionFinishedMsg{taskID: taskID}:
	case <-e.done:
	}
}

// Execute spawns ex and returns its output stream (or launch error).
func (e *Executor) Execute(ctx context.Context, ex workload.Executable) (<-chan string, *model.TaskExecError) {
	reply := make(chan ExecuteResult, 1)
	if err := e.send(ctx, executeMsg{ex: ex, reply: reply}); err != nil {
		return nil, model.NewGeneric(err.Error())
	}
	select {
	case r := <-reply:
		return r.Stream, r.Err
	case <-ctx.Done():
		return nil, model.NewGeneric(ctx.Err().Error())
	}
}

// ---- Abort ----

type abortMsg struct {
	taskID uuid.UUID
	reply  chan bool
}

func (m abortMsg) apply(ctx context.Context, e *Executor) {
	h, ok := e.handles[m.taskID]
	if !ok {
		m.reply <- false
		return
	}
	delete(e.handles, m.taskID)
	close(h.abort)
	m.reply <- true
}

// Abort fires the abort trigger for taskID, if it is still live. It
// reports false if no such firing is in flight (spec.md §4.3).
func (e *Executor) Abort(ctx context.Context, taskID uuid.UUID) (bool, error) {
	reply := make(chan bool, 1)
	if err := e.send(ctx, abortMsg{taskID: taskID, reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// ---- ExecutionFinished ----

type executionFinishedMsg struct {
	taskID uuid.UUID
}

func (m executionFinishedMsg) apply(ctx context.Context, e *Executor) {
	delete(e.handles, m.taskID)
}

// ---- GetActiveTaskIDs ----

type getActiveTaskIDsMsg struct {
	reply chan []uuid.UUID
}

func (m getActiveTaskIDsMsg) apply(ctx context.Context, e *Executor) {
	ids := make([]uuid.UUID, 0, len(e.handles))
	for id := range e.handles {
		ids = append(ids, id)
	}
	m.reply <- ids
}

// ActiveTaskIDs returns a snapshot of the currently held task ids.
func (e *Executor) ActiveTaskIDs(ctx context.Context) ([]uuid.UUID, error) {
	reply := make(chan []uuid.UUID, 1)
	if err := e.send(ctx, getActiveTaskIDsMsg{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case ids := <-reply:
		return ids, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
