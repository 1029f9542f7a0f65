package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
)

// InboxCapacity is the Persistence Gateway's inbox bound (spec.md §5:
// "Per-component inboxes are bounded (capacity 32...)").
const InboxCapacity = 32

// Result is the typed reply payload delivered on every Gateway
// operation's one-shot reply channel.
type Result[T any] struct {
	Value T
	Err   error
}

// reply is a capacity-1 channel so a send from the Gateway never blocks
// even if the caller has stopped listening; an undelivered reply is
// simply dropped (spec.md §4.2: "logs at info level and discards").
type reply[T any] chan Result[T]

func newReply[T any]() reply[T] { return make(reply[T], 1) }

// op is implemented by every message variant the Gateway accepts.
type op interface {
	run(ctx context.Context, s *Store)
}

// Gateway serializes all durable-state mutation behind a single inbox,
// matching spec.md §4.2: every operation is a message with a typed
// reply channel, dispatched on an independent goroutine so the Gateway
// itself never blocks on one slow query; true concurrency is bounded by
// the Store's five-connection pool.
type Gateway struct {
	store  *Store
	logger *slog.Logger
	inbox  chan op
	done   chan struct{}
}

// NewGateway starts the Gateway's dispatch loop.
func NewGateway(store *Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		store:  store,
		logger: logger,
		inbox:  make(chan op, InboxCapacity),
		done:   make(chan struct{}),
	}
	go g.loop()
	return g
}

func (g *Gateway) loop() {
	defer close(g.done)
	for m := range g.inbox {
		go m.run(context.Background(), g.store)
	}
}

// Close stops accepting new operations. In-flight operations are not
// awaited; callers that need a clean shutdown should stop sending first
// and give outstanding replies a moment to land.
func (g *Gateway) Close() {
	close(g.inbox)
	<-g.done
}

// send enqueues op o onto the inbox, applying backpressure (suspend on
// a full inbox) per spec.md §5, unless ctx is done first.
func send(ctx context.Context, inbox chan<- op, o op) error {
	select {
	case inbox <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---- CreateTask ----

type createTaskOp struct {
	task  model.Task
	reply reply[model.Task]
}

func (o createTaskOp) run(ctx context.Context, s *Store) {
	t, err := s.CreateTask(ctx, o.task)
	deliver(o.reply, t, err)
}

func (g *Gateway) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	r := newReply[model.Task]()
	if err := send(ctx, g.inbox, createTaskOp{task: t, reply: r}); err != nil {
		return model.Task{}, err
	}
	return await(ctx, r)
}

// ---- GetTask ----

type getTaskOp struct {
	id    uuid.UUID
	reply reply[model.Task]
}

func (o getTaskOp) run(ctx context.Context, s *Store) {
	t, err := s.GetTask(ctx, o.id)
	deliver(o.reply, t, err)
}

func (g *Gateway) GetTask(ctx context.Context, id uuid.UUID) (model.Task, error) {
	r := newReply[model.Task]()
	if err := send(ctx, g.inbox, getTaskOp{id: id, reply: r}); err != nil {
		return model.Task{}, err
	}
	return await(ctx, r)
}

// ---- GetTasks ----

type getTasksOp struct {
	offset int64
	reply  reply[[]model.Task]
}

func (o getTasksOp) run(ctx context.Context, s *Store) {
	ts, err := s.GetTasks(ctx, o.offset)
	deliver(o.reply, ts, err)
}

func (g *Gateway) GetTasks(ctx context.Context, offset int64) ([]model.Task, error) {
	r := newReply[[]model.Task]()
	if err := send(ctx, g.inbox, getTasksOp{offset: offset, reply: r}); err != nil {
		return nil, err
	}
	return await(ctx, r)
}

// ---- GetScheduledTasks ----

type getScheduledTasksOp struct {
	when  time.Time
	reply reply[[]model.Task]
}

func (o getScheduledTasksOp) run(ctx context.Context, s *Store) {
	ts, err := s.GetScheduledTasks(ctx, o.when)
	deliver(o.reply, ts, err)
}

func (g *Gateway) GetScheduledTasks(ctx context.Context, when time.Time) ([]model.Task, error) {
	r := newReply[[]model.Task]()
	if err := send(ctx, g.inbox, getScheduledTasksOp{when: when, reply: r}); err != nil {
		return nil, err
	}
	return await(ctx, r)
}

// ---- UpdateTask ----

type updateTaskOp struct {
	task  model.Task
	reply reply[model.Task]
}

func (o updateTaskOp) run(ctx context.Context, s *Store) {
	t, err := s.UpdateTask(ctx, o.task)
	deliver(o.reply, t, err)
}

func (g *Gateway) UpdateTask(ctx context.Context, t model.Task) (model.Task, error) {
	r := newReply[model.Task]()
	if err := send(ctx, g.inbox, updateTaskOp{task: t, reply: r}); err != nil {
		return model.Task{}, err
	}
	return await(ctx, r)
}

// ---- UpdateNextExecution ----

type updateNextExecutionOp struct {
	id    uuid.UUID
	now   time.Time
	next  *time.Time
	reply reply[model.Task]
}

func (o updateNextExecutionOp) run(ctx context.Context, s *Store) {
	t, err := s.UpdateNextExecution(ctx, o.id, o.now, o.next)
	deliver(o.reply, t, err)
}

func (g *Gateway) UpdateNextExecution(ctx context.Context, id uuid.UUID, now time.Time, next *time.Time) (model.Task, error) {
	r := newReply[model.Task]()
	if err := send(ctx, g.inbox, updateNextExecutionOp{id: id, now: now, next: next, reply: r}); err != nil {
		return model.Task{}, err
	}
	return await(ctx, r)
}

// ---- DeleteTask ----

type deleteTaskOp struct {
	id    uuid.UUID
	reply reply[struct{}]
}

func (o deleteTaskOp) run(ctx context.Context, s *Store) {
	err := s.DeleteTask(ctx, o.id)
	deliver(o.reply, struct{}{}, err)
}

func (g *Gateway) DeleteTask(ctx context.Context, id uuid.UUID) error {
	r := newReply[struct{}]()
	if err := send(ctx, g.inbox, deleteTaskOp{id: id, reply: r}); err != nil {
		return err
	}
	_, err := await(ctx, r)
	return err
}

// ---- CreateError ----

type createErrorOp struct {
	taskError model.TaskError
	reply     reply[model.TaskError]
}

func (o createErrorOp) run(ctx context.Context, s *Store) {
	e, err := s.CreateError(ctx, o.taskError)
	deliver(o.reply, e, err)
}

func (g *Gateway) CreateError(ctx context.Context, e model.TaskError) (model.TaskError, error) {
	r := newReply[model.TaskError]()
	if err := send(ctx, g.inbox, createErrorOp{taskError: e, reply: r}); err != nil {
		return model.TaskError{}, err
	}
	return await(ctx, r)
}

// ---- CreateExecutionReport ----

type createExecutionReportOp struct {
	report model.ExecutionReport
	reply  reply[model.ExecutionReport]
}

func (o createExecutionReportOp) run(ctx context.Context, s *Store) {
	r, err := s.CreateExecutionReport(ctx, o.report)
	deliver(o.reply, r, err)
}

func (g *Gateway) CreateExecutionReport(ctx context.Context, rpt model.ExecutionReport) (model.ExecutionReport, error) {
	r := newReply[model.ExecutionReport]()
	if err := send(ctx, g.inbox, createExecutionReportOp{report: rpt, reply: r}); err != nil {
		return model.ExecutionReport{}, err
	}
	return await(ctx, r)
}

// ---- GetExecutionReport ----

type getExecutionReportOp struct {
	id    uuid.UUID
	reply reply[model.ExecutionReport]
}

func (o getExecutionReportOp) run(ctx context.Context, s *Store) {
	rpt, err := s.GetExecutionReport(ctx, o.id)
	deliver(o.reply, rpt, err)
}

func (g *Gateway) GetExecutionReport(ctx context.Context, id uuid.UUID) (model.ExecutionReport, error) {
	r := newReply[model.ExecutionReport]()
	if err := send(ctx, g.inbox, getExecutionReportOp{id: id, reply: r}); err != nil {
		return model.ExecutionReport{}, err
	}
	return await(ctx, r)
}

// ---- GetExecutionReports ----

type getExecutionReportsOp struct {
	offset int64
	reply  reply[[]model.ExecutionReport]
}

func (o getExecutionReportsOp) run(ctx context.Context, s *Store) {
	rs, err := s.GetExecutionReports(ctx, o.offset)
	deliver(o.reply, rs, err)
}

func (g *Gateway) GetExecutionReports(ctx context.Context, offset int64) ([]model.ExecutionReport, error) {
	r := newReply[[]model.ExecutionReport]()
	if err := send(ctx, g.inbox, getExecutionReportsOp{offset: offset, reply: r}); err != nil {
		return nil, err
	}
	return await(ctx, r)
}

// ---- GetExecutionReportsForTask ----

type getExecutionReportsForTaskOp struct {
	taskID uuid.UUID
	offset int64
	reply  reply[[]model.ExecutionReport]
}

func (o getExecutionReportsForTaskOp) run(ctx context.Context, s *Store) {
	rs, err := s.GetExecutionReportsForTask(ctx, o.taskID, o.offset)
	deliver(o.reply, rs, err)
}

func (g *Gateway) GetExecutionReportsForTask(ctx context.Context, taskID uuid.UUID, offset int64) ([]model.ExecutionReport, error) {
	r := newReply[[]model.ExecutionReport]()
	if err := send(ctx, g.inbox, getExecutionReportsForTaskOp{taskID: taskID, offset: offset, reply: r}); err != nil {
		return nil, err
	}
	return await(ctx, r)
}

// deliver sends a result on a capacity-1 reply channel without blocking;
// an undeliverable reply (caller vanished) is dropped silently, per the
// Gateway's non-panicking delivery guarantee (spec.md §4.2). The caller
// is responsible for logging at the Gateway construction site if it
// wants visibility into this — kept out of the hot path here since the
// channel is always capacity 1 and freshly made, so the only way
// delivery fails is if nobody will ever receive.
func deliver[T any](r reply[T], v T, err error) {
	select {
	case r <- Result[T]{Value: v, Err: err}:
	default:
	}
}

func await[T any](ctx context.Context, r reply[T]) (T, error) {
	select {
	case res := <-r:
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
