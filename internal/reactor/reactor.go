// Package reactor implements the Reactor (spec.md §4.1): the single
// orchestration point through which every state-changing operation —
// the scheduling tick or an API call — flows as a typed message. Its
// inbox is split per edge (tick, API) as suggested in spec.md §9 so
// each handler has a tight, typed surface instead of one giant enum.
package reactor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/gokayokyay/stewardx/internal/bus"
	"github.com/gokayokyay/stewardx/internal/executor"
	"github.com/gokayokyay/stewardx/internal/frequency"
	"github.com/gokayokyay/stewardx/internal/model"
	"github.com/gokayokyay/stewardx/internal/persistence"
	"github.com/gokayokyay/stewardx/internal/watcher"
	"github.com/gokayokyay/stewardx/internal/workload"
)

// InboxCapacity is the Reactor's inbox bound (spec.md §5: "internal
// Reactor inbox 128").
const InboxCapacity = 128

// TickInterval is the scheduling tick's sleep duration (spec.md §4.1).
const TickInterval = time.Second

// ErrNotAwake is returned to callers when the Reactor's inbox cannot
// accept a message — the HTTP API Adapter turns this into the exact
// 5xx body spec.md §8 scenario 6 requires.
var ErrNotAwake = errors.New("reactor isn't awake")

// message is implemented by every variant the Reactor's inbox accepts.
type message interface {
	apply(ctx context.Context, r *Reactor)
}

// Reactor is the central hub. All of its mutable bookkeeping (none,
// today — it borrows state only via message replies) lives on the
// goroutine that drains inbox, per spec.md §2's ownership rule.
type Reactor struct {
	gateway  *persistence.Gateway
	executor *executor.Executor
	watcher  *watcher.Watcher
	outputs  *bus.OutputBus
	webhooks WebhookSender
	logger   *slog.Logger

	inbox chan message
	done  chan struct{}
}

// WebhookSender delivers a completed ExecutionReport to a task's
// configured webhook_url (SPEC_FULL.md §1.3, supplemented feature).
type WebhookSender interface {
	Send(ctx context.Context, url string, task model.Task, report model.ExecutionReport)
}

// New starts the Reactor's dispatch loop and its 1-second tick.
func New(gw *persistence.Gateway, ex *executor.Executor, outputs *bus.OutputBus, webhooks WebhookSender, logger *slog.Logger) *Reactor {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reactor{
		gateway:  gw,
		executor: ex,
		watcher:  watcher.New(outputs, logger),
		outputs:  outputs,
		webhooks: webhooks,
		logger:   logger,
		inbox:    make(chan message, InboxCapacity),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Reactor) loop() {
	defer close(r.done)
	ctx := context.Background()
	for m := range r.inbox {
		m.apply(ctx, r)
	}
}

// Close stops accepting new messages and waits for the loop to drain.
func (r *Reactor) Close() {
	close(r.inbox)
	<-r.done
}

// Outputs returns the process-wide output broadcaster, for callers
// that want to subscribe to live execution output (e.g. the HTTP API
// Adapter's websocket route).
func (r *Reactor) Outputs() *bus.OutputBus {
	return r.outputs
}

// RunTicker sleeps one second and posts a TickFire, repeatedly, until
// ctx is cancelled (spec.md §4.1's "dedicated cooperative task").
func (r *Reactor) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.postTick(ctx, now.UTC())
		}
	}
}

func (r *Reactor) postTick(ctx context.Context, now time.Time) {
	select {
	case r.inbox <- tickMsg{now: now}:
	case <-ctx.Done():
	default:
		// The inbox is saturated; this tick is skipped rather than
		// blocking the ticker goroutine indefinitely. The next tick
		// will pick up anything still due.
		r.logger.Warn("reactor_tick_dropped_inbox_full")
	}
}

// send enqueues m, reporting ErrNotAwake if the inbox is full or the
// Reactor has stopped (spec.md §8 scenario 6).
func (r *Reactor) send(ctx context.Context, m message) error {
	select {
	case r.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrNotAwake
	}
}

// fatal terminates the process after logging the dropped subsystem
// (spec.md §4.1, §7: "Any message send to a required subsystem whose
// receiver has been dropped is fatal to the process").
func (r *Reactor) fatal(subsystem string, err error) {
	wrapped := pkgerrors.Wrap(err, subsystem+" receiver has been dropped")
	r.logger.Error("fatal_channel_dropped",
		slog.String("subsystem", subsystem),
		slog.Any("error", wrapped),
		slog.Any("cause", pkgerrors.Cause(err)),
	)
	os.Exit(1)
}

// ---- TickFire ----

type tickMsg struct {
	now time.Time
}

func (m tickMsg) apply(ctx context.Context, r *Reactor) {
	due, err := r.gateway.GetScheduledTasks(ctx, m.now)
	if err != nil {
		r.fatal("persistence", err)
		return
	}
	for _, task := range due {
		r.fireTask(ctx, task, m.now)
	}
}

// fireTask implements spec.md §4.1 steps 2-4 for a single due task:
// resolve the adapter, dispatch to the Executor, advance the schedule,
// and hand the stream to the TaskWatcher in the background.
func (r *Reactor) fireTask(ctx context.Context, task model.Task, now time.Time) {
	ex, execErr := workload.New(task.ID, task.TaskType, task.TaskProps)
	if execErr != nil {
		r.recordError(ctx, task.ID, execErr)
		return
	}

	stream, execErr := r.executor.Execute(ctx, ex)

	next := computeNext(task.Frequency, now)
	if _, err := r.gateway.UpdateNextExecution(ctx, task.ID, now, next); err != nil {
		r.fatal("persistence", err)
		return
	}

	go r.finishFiring(ctx, task, stream, execErr)
}

// finishFiring watches the firing to completion, persists its report,
// and delivers the configured webhook, if any (SPEC_FULL.md §1.3).
func (r *Reactor) finishFiring(ctx context.Context, task model.Task, stream <-chan string, launchErr *model.TaskExecError) {
	report := r.watcher.WatchExecution(task.ID, stream, launchErr)
	if _, err := r.gateway.CreateExecutionReport(ctx, report); err != nil {
		r.logger.Error("execution_report_persist_failed", slog.String("task_id", task.ID.String()), slog.Any("error", err))
	}
	if launchErr != nil {
		r.recordError(ctx, task.ID, launchErr)
	}
	if task.WebhookURL != "" && r.webhooks != nil {
		r.webhooks.Send(ctx, task.WebhookURL, task, report)
	}
}

func (r *Reactor) recordError(ctx context.Context, taskID uuid.UUID, execErr *model.TaskExecError) {
	_, err := r.gateway.CreateError(ctx, model.TaskError{
		ID:        uuid.New(),
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
		Category:  execErr.Category,
		Message:   execErr.Message,
	})
	if err != nil {
		r.logger.Error("task_error_persist_failed", slog.String("task_id", taskID.String()), slog.Any("error", err))
	}
}

// computeNext resolves a task's next_execution after a firing. Parse
// failures and non-schedulable frequencies (Hook) both yield nil — the
// task simply stops being returned by GetScheduledTasks, matching
// spec.md §4.6.
func computeNext(freqExpr string, after time.Time) *time.Time {
	freq, err := frequency.Parse(freqExpr)
	if err != nil || !freq.Schedulable() {
		return nil
	}
	next, ok := freq.Next(after)
	if !ok {
		return nil
	}
	return &next
}
