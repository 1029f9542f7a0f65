package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/gokayokyay/stewardx/internal/bus"
	"github.com/gokayokyay/stewardx/internal/executor"
	"github.com/gokayokyay/stewardx/internal/persistence"
)

func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	store, err := persistence.Open(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	gw := persistence.NewGateway(store, nil)
	t.Cleanup(gw.Close)

	ex := executor.New(nil)
	t.Cleanup(ex.Close)

	r := New(gw, ex, bus.New(nil), nil, nil)
	t.Cleanup(r.Close)
	return r
}

func TestCreateAndGetTask(t *testing.T) {
	r := newTestReactor(t)
	ctx := context.Background()

	created, err := r.CreateTask(ctx, NewTaskParams{
		Name: "ls", TaskType: "cmd", TaskProps: `{"command":"echo hello"}`, Frequency: "Every(* * * * * *)",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.NextExecution == nil {
		t.Fatal("expected a schedulable task to get a next_execution")
	}

	got, err := r.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Name != "ls" {
		t.Fatalf("got name %q, want ls", got.Name)
	}
}

func TestCreateTask_MalformedPropsRejected(t *testing.T) {
	r := newTestReactor(t)
	ctx := context.Background()

	_, err := r.CreateTask(ctx, NewTaskParams{
		Name: "broken", TaskType: "cmd", TaskProps: `{}`, Frequency: "Hook",
	})
	if err == nil {
		t.Fatal("expected an error for a missing 'command' property")
	}
	if err.Error() != "MalformedSerde: Required property not specified: 'command'" {
		t.Fatalf("got %q", err.Error())
	}

	tasks, listErr := r.ListTasks(ctx, 0)
	if listErr != nil {
		t.Fatalf("ListTasks: %v", listErr)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no task persisted, got %d", len(tasks))
	}
}

func TestHookTaskHasNoNextExecution(t *testing.T) {
	r := newTestReactor(t)
	ctx := context.Background()

	created, err := r.CreateTask(ctx, NewTaskParams{
		Name: "hook", TaskType: "cmd", TaskProps: `{"command":"echo hi"}`, Frequency: "Hook",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.NextExecution != nil {
		t.Fatal("expected a Hook task to have no next_execution")
	}
}

func TestExecuteNow_FiresTaskAndPersistsReport(t *testing.T) {
	r := newTestReactor(t)
	ctx := context.Background()

	created, err := r.CreateTask(ctx, NewTaskParams{
		Name: "ls", TaskType: "cmd", TaskProps: `{"command":"echo hello"}`, Frequency: "Hook",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := r.ExecuteNow(ctx, created.ID); err != nil {
		t.Fatalf("ExecuteNow: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		reports, err := r.ListReportsForTask(ctx, created.ID, 0)
		if err != nil {
			t.Fatalf("ListReportsForTask: %v", err)
		}
		if len(reports) == 1 {
			if !reports[0].Success || len(reports[0].Output) != 1 || reports[0].Output[0] != "hello" {
				t.Fatalf("got report %+v", reports[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the execution report")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAbortTask_UnknownReturnsFalse(t *testing.T) {
	r := newTestReactor(t)
	ctx := context.Background()

	created, err := r.CreateTask(ctx, NewTaskParams{
		Name: "hook", TaskType: "cmd", TaskProps: `{"command":"echo hi"}`, Frequency: "Hook",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	ok, err := r.AbortTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("AbortTask: %v", err)
	}
	if ok {
		t.Fatal("expected false: the task was never executed")
	}
}

func TestDeleteTask_Cascades(t *testing.T) {
	r := newTestReactor(t)
	ctx := context.Background()

	created, err := r.CreateTask(ctx, NewTaskParams{
		Name: "ls", TaskType: "cmd", TaskProps: `{"command":"echo hello"}`, Frequency: "Hook",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	if err := r.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	if _, err := r.GetTask(ctx, created.ID); err == nil {
		t.Fatal("expected the task to be gone")
	}
}
