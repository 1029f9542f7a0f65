package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/api"
	"github.com/gokayokyay/stewardx/internal/bus"
	"github.com/gokayokyay/stewardx/internal/executor"
	"github.com/gokayokyay/stewardx/internal/model"
	"github.com/gokayokyay/stewardx/internal/persistence"
	"github.com/gokayokyay/stewardx/internal/reactor"
)

func newTestServer(t *testing.T, crud bool) *httptest.Server {
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

	r := reactor.New(gw, ex, bus.New(nil), nil, nil)
	t.Cleanup(r.Close)

	s := api.New(api.Config{Reactor: r, ServerCRUDFeature: crud})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHandleTasksCollection_CreateAndList(t *testing.T) {
	ts := newTestServer(t, true)

	body, _ := json.Marshal(reactor.NewTaskParams{
		Name: "ls", TaskType: "cmd", TaskProps: `{"command":"echo hi"}`, Frequency: "Hook",
	})
	resp, err := http.Post(ts.URL+"/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /tasks: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got status %d, want 201", resp.StatusCode)
	}
	var created model.Task
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Name != "ls" {
		t.Fatalf("got name %q", created.Name)
	}

	listResp, err := http.Get(ts.URL + "/tasks")
	if err != nil {
		t.Fatalf("GET /tasks: %v", err)
	}
	defer listResp.Body.Close()
	var tasks []model.Task
	if err := json.NewDecoder(listResp.Body).Decode(&tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
}

func TestHandleTasksCollection_CRUDDisabledIs404(t *testing.T) {
	ts := newTestServer(t, false)

	body, _ := json.Marshal(reactor.NewTaskParams{Name: "x", TaskType: "cmd", TaskProps: `{"command":"echo hi"}`, Frequency: "Hook"})
	resp, err := http.Post(ts.URL+"/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /tasks: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d, want 404 when server_crud_feature is off", resp.StatusCode)
	}
}

func TestHandleTaskByID_UnknownReturns500WithReactorError(t *testing.T) {
	ts := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/tasks/" + uuid.New().String())
	if err != nil {
		t.Fatalf("GET /tasks/{id}: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("got status %d", resp.StatusCode)
	}
}

func TestHandleExecuteAndReports(t *testing.T) {
	ts := newTestServer(t, true)

	body, _ := json.Marshal(reactor.NewTaskParams{
		Name: "ls", TaskType: "cmd", TaskProps: `{"command":"echo hello"}`, Frequency: "Hook",
	})
	createResp, err := http.Post(ts.URL+"/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /tasks: %v", err)
	}
	var created model.Task
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	createResp.Body.Close()

	execBody, _ := json.Marshal(map[string]string{"task_id": created.ID.String()})
	execResp, err := http.Post(ts.URL+"/execute", "application/json", bytes.NewReader(execBody))
	if err != nil {
		t.Fatalf("POST /execute: %v", err)
	}
	defer execResp.Body.Close()
	if execResp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", execResp.StatusCode)
	}
}
