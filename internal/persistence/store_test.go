package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"

	"github.com/gokayokyay/stewardx/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", nil)
	assert.NilError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTask() model.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return model.Task{
		ID:        uuid.New(),
		Name:      "ls",
		TaskType:  "cmd",
		TaskProps: `{"command":"echo hello"}`,
		Frequency: "Every(* * * * * *)",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := sampleTask()
	created, err := s.CreateTask(ctx, in)
	assert.NilError(t, err)
	assert.Equal(t, created.ID, in.ID)

	got, err := s.GetTask(ctx, in.ID)
	assert.NilError(t, err)
	assert.Equal(t, got.Name, "ls")
	assert.Equal(t, got.TaskProps, in.TaskProps)
}

func TestGetScheduledTasksBoundary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	in := sampleTask()
	in.NextExecution = &now
	_, err := s.CreateTask(ctx, in)
	assert.NilError(t, err)

	due, err := s.GetScheduledTasks(ctx, now)
	assert.NilError(t, err)
	assert.Equal(t, len(due), 1)

	// A hook-style task (no next_execution) is never returned.
	hook := sampleTask()
	hook.Frequency = "Hook"
	_, err = s.CreateTask(ctx, hook)
	assert.NilError(t, err)

	due, err = s.GetScheduledTasks(ctx, now)
	assert.NilError(t, err)
	assert.Equal(t, len(due), 1)
}

func TestUpdateNextExecutionIncrementsExecCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := sampleTask()
	_, err := s.CreateTask(ctx, in)
	assert.NilError(t, err)

	now := time.Now().UTC()
	next := now.Add(time.Minute)
	updated, err := s.UpdateNextExecution(ctx, in.ID, now, &next)
	assert.NilError(t, err)
	assert.Equal(t, updated.ExecCount, int64(1))
	assert.Assert(t, updated.NextExecution != nil)
}

func TestPaginationOffsetBeyondCountIsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, sampleTask())
	assert.NilError(t, err)

	tasks, err := s.GetTasks(ctx, 1000)
	assert.NilError(t, err)
	assert.Equal(t, len(tasks), 0)
}

func TestDeleteTaskCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := sampleTask()
	_, err := s.CreateTask(ctx, in)
	assert.NilError(t, err)

	_, err = s.CreateError(ctx, model.TaskError{
		ID: uuid.New(), TaskID: in.ID, CreatedAt: time.Now().UTC(),
		Category: model.CategoryGeneric, Message: "boom",
	})
	assert.NilError(t, err)

	_, err = s.CreateExecutionReport(ctx, model.ExecutionReport{
		ID: uuid.New(), TaskID: in.ID, CreatedAt: time.Now().UTC(),
		Success: true, Output: []string{"hello"},
	})
	assert.NilError(t, err)

	assert.NilError(t, s.DeleteTask(ctx, in.ID))

	_, err = s.GetTask(ctx, in.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	reports, err := s.GetExecutionReportsForTask(ctx, in.ID, 0)
	assert.NilError(t, err)
	assert.Equal(t, len(reports), 0)
}

func TestExecutionReportOutputRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := sampleTask()
	_, err := s.CreateTask(ctx, in)
	assert.NilError(t, err)

	report := model.ExecutionReport{
		ID: uuid.New(), TaskID: in.ID, CreatedAt: time.Now().UTC(),
		Success: true, Output: []string{"line one", "line two"},
	}
	_, err = s.CreateExecutionReport(ctx, report)
	assert.NilError(t, err)

	got, err := s.GetExecutionReport(ctx, report.ID)
	assert.NilError(t, err)
	assert.DeepEqual(t, got.Output, report.Output)
}
