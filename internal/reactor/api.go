package reactor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
	"github.com/gokayokyay/stewardx/internal/workload"
)

// workloadBuildPayload turns an API-supplied task_props property bag
// into the matching adapter's canonical payload string (spec.md §4.5
// "Construction from property bag").
func workloadBuildPayload(taskType, taskProps string) (string, *model.TaskExecError) {
	return workload.BuildPayload(taskType, []byte(taskProps))
}

// result is the generic reply envelope for a single-value API operation.
type result[T any] struct {
	value T
	err   error
}

func await[T any](ctx context.Context, reply chan result[T]) (T, error) {
	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// ---- GetTask ----

type getTaskMsg struct {
	id    uuid.UUID
	reply chan result[model.Task]
}

func (m getTaskMsg) apply(ctx context.Context, r *Reactor) {
	t, err := r.gateway.GetTask(ctx, m.id)
	m.reply <- result[model.Task]{t, err}
}

// GetTask returns a single task by id (spec.md §6 GET /tasks/{id}).
func (r *Reactor) GetTask(ctx context.Context, id uuid.UUID) (model.Task, error) {
	reply := make(chan result[model.Task], 1)
	if err := r.send(ctx, getTaskMsg{id: id, reply: reply}); err != nil {
		return model.Task{}, err
	}
	return await(ctx, reply)
}

// ---- ListTasks ----

type listTasksMsg struct {
	offset int64
	reply  chan result[[]model.Task]
}

func (m listTasksMsg) apply(ctx context.Context, r *Reactor) {
	ts, err := r.gateway.GetTasks(ctx, m.offset)
	m.reply <- result[[]model.Task]{ts, err}
}

// ListTasks returns tasks, paginated, created_at descending (spec.md §6
// GET /tasks).
func (r *Reactor) ListTasks(ctx context.Context, offset int64) ([]model.Task, error) {
	reply := make(chan result[[]model.Task], 1)
	if err := r.send(ctx, listTasksMsg{offset: offset, reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, reply)
}

// ---- CreateTask ----

// NewTaskParams carries the fields an API caller supplies to create a
// task (spec.md §6 POST /tasks body).
type NewTaskParams struct {
	Name       string
	TaskType   string
	TaskProps  string
	Frequency  string
	WebhookURL string
}

type createTaskMsg struct {
	params NewTaskParams
	reply  chan result[model.Task]
}

func (m createTaskMsg) apply(ctx context.Context, r *Reactor) {
	t, execErr := buildTask(m.params)
	if execErr != nil {
		m.reply <- result[model.Task]{err: execErr}
		return
	}
	created, err := r.gateway.CreateTask(ctx, t)
	m.reply <- result[model.Task]{created, err}
}

// CreateTask validates params, computes the task's initial
// next_execution from its frequency, and persists it (spec.md §6 POST
// /tasks). A malformed task_props yields the adapter's MalformedSerde
// error, matching spec.md §8 scenario 3.
func (r *Reactor) CreateTask(ctx context.Context, params NewTaskParams) (model.Task, error) {
	reply := make(chan result[model.Task], 1)
	if err := r.send(ctx, createTaskMsg{params: params, reply: reply}); err != nil {
		return model.Task{}, err
	}
	return await(ctx, reply)
}

func buildTask(params NewTaskParams) (model.Task, *model.TaskExecError) {
	now := time.Now().UTC()
	id := uuid.New()

	// Round-trip the supplied props through the matching adapter so a
	// malformed payload is caught before anything is persisted.
	payload, execErr := workloadBuildPayload(params.TaskType, params.TaskProps)
	if execErr != nil {
		return model.Task{}, execErr
	}

	t := model.Task{
		ID:         id,
		Name:       params.Name,
		TaskType:   params.TaskType,
		TaskProps:  payload,
		Frequency:  params.Frequency,
		WebhookURL: params.WebhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.NextExecution = computeNext(params.Frequency, now)
	return t, nil
}

// ---- UpdateTask ----

type updateTaskMsg struct {
	id     uuid.UUID
	params NewTaskParams
	reply  chan result[model.Task]
}

func (m updateTaskMsg) apply(ctx context.Context, r *Reactor) {
	t, execErr := buildTask(m.params)
	if execErr != nil {
		m.reply <- result[model.Task]{err: execErr}
		return
	}
	t.ID = m.id
	updated, err := r.gateway.UpdateTask(ctx, t)
	m.reply <- result[model.Task]{updated, err}
}

// UpdateTask overwrites an existing task's fields (spec.md §6 POST
// /tasks/{id}).
func (r *Reactor) UpdateTask(ctx context.Context, id uuid.UUID, params NewTaskParams) (model.Task, error) {
	reply := make(chan result[model.Task], 1)
	if err := r.send(ctx, updateTaskMsg{id: id, params: params, reply: reply}); err != nil {
		return model.Task{}, err
	}
	return await(ctx, reply)
}

// ---- DeleteTask ----

type deleteTaskMsg struct {
	id    uuid.UUID
	reply chan result[struct{}]
}

func (m deleteTaskMsg) apply(ctx context.Context, r *Reactor) {
	err := r.gateway.DeleteTask(ctx, m.id)
	m.reply <- result[struct{}]{struct{}{}, err}
}

// DeleteTask removes a task and cascades to its errors/reports (spec.md
// §6 DELETE /tasks, §4.5).
func (r *Reactor) DeleteTask(ctx context.Context, id uuid.UUID) error {
	reply := make(chan result[struct{}], 1)
	if err := r.send(ctx, deleteTaskMsg{id: id, reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, reply)
	return err
}

// ---- ExecuteNow ----

type executeNowMsg struct {
	id    uuid.UUID
	reply chan result[struct{}]
}

func (m executeNowMsg) apply(ctx context.Context, r *Reactor) {
	task, err := r.gateway.GetTask(ctx, m.id)
	if err != nil {
		m.reply <- result[struct{}]{err: err}
		return
	}
	r.fireTask(ctx, task, time.Now().UTC())
	m.reply <- result[struct{}]{}
}

// ExecuteNow fires task id immediately, taking the same path as a
// tick-originated execution (spec.md §4.1, §6 POST /execute(/{id})).
func (r *Reactor) ExecuteNow(ctx context.Context, id uuid.UUID) error {
	reply := make(chan result[struct{}], 1)
	if err := r.send(ctx, executeNowMsg{id: id, reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, reply)
	return err
}

// ---- Abort ----

type abortTaskMsg struct {
	id    uuid.UUID
	reply chan result[bool]
}

func (m abortTaskMsg) apply(ctx context.Context, r *Reactor) {
	ok, err := r.executor.Abort(ctx, m.id)
	m.reply <- result[bool]{ok, err}
}

// AbortTask requests the Executor cancel a specific in-flight firing
// (spec.md §6 POST /abort(/{id})).
func (r *Reactor) AbortTask(ctx context.Context, id uuid.UUID) (bool, error) {
	reply := make(chan result[bool], 1)
	if err := r.send(ctx, abortTaskMsg{id: id, reply: reply}); err != nil {
		return false, err
	}
	return await(ctx, reply)
}

// ---- ActiveTasks ----

type activeTasksMsg struct {
	reply chan result[[]model.Task]
}

func (m activeTasksMsg) apply(ctx context.Context, r *Reactor) {
	ids, err := r.executor.ActiveTaskIDs(ctx)
	if err != nil {
		m.reply <- result[[]model.Task]{err: err}
		return
	}
	tasks := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, err := r.gateway.GetTask(ctx, id)
		if err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	m.reply <- result[[]model.Task]{value: tasks}
}

// ActiveTasks returns the tasks currently in flight (spec.md §6 GET
// /activetasks).
func (r *Reactor) ActiveTasks(ctx context.Context) ([]model.Task, error) {
	reply := make(chan result[[]model.Task], 1)
	if err := r.send(ctx, activeTasksMsg{reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, reply)
}

// ---- Reports ----

type listReportsMsg struct {
	taskID *uuid.UUID
	offset int64
	reply  chan result[[]model.ExecutionReport]
}

func (m listReportsMsg) apply(ctx context.Context, r *Reactor) {
	var rs []model.ExecutionReport
	var err error
	if m.taskID != nil {
		rs, err = r.gateway.GetExecutionReportsForTask(ctx, *m.taskID, m.offset)
	} else {
		rs, err = r.gateway.GetExecutionReports(ctx, m.offset)
	}
	m.reply <- result[[]model.ExecutionReport]{rs, err}
}

// ListReports returns reports across all tasks (spec.md §6 GET
// /reports?offset=N).
func (r *Reactor) ListReports(ctx context.Context, offset int64) ([]model.ExecutionReport, error) {
	reply := make(chan result[[]model.ExecutionReport], 1)
	if err := r.send(ctx, listReportsMsg{offset: offset, reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, reply)
}

// ListReportsForTask returns a single task's reports (spec.md §6 GET
// /task/{id}/reports?offset=N).
func (r *Reactor) ListReportsForTask(ctx context.Context, taskID uuid.UUID, offset int64) ([]model.ExecutionReport, error) {
	reply := make(chan result[[]model.ExecutionReport], 1)
	if err := r.send(ctx, listReportsMsg{taskID: &taskID, offset: offset, reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, reply)
}

type getReportMsg struct {
	id    uuid.UUID
	reply chan result[model.ExecutionReport]
}

func (m getReportMsg) apply(ctx context.Context, r *Reactor) {
	rpt, err := r.gateway.GetExecutionReport(ctx, m.id)
	m.reply <- result[model.ExecutionReport]{rpt, err}
}

// GetReport returns a single report by id (spec.md §6 GET /reports/{id}).
func (r *Reactor) GetReport(ctx context.Context, id uuid.UUID) (model.ExecutionReport, error) {
	reply := make(chan result[model.ExecutionReport], 1)
	if err := r.send(ctx, getReportMsg{id: id, reply: reply}); err != nil {
		return model.ExecutionReport{}, err
	}
	return await(ctx, reply)
}
