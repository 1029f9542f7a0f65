package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
)

func TestSend_PostsReportJSON(t *testing.T) {
	received := make(chan model.ExecutionReport, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var report model.ExecutionReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		received <- report
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s := New(nil)
	task := model.Task{ID: uuid.New(), Name: "ls"}
	report := model.ExecutionReport{ID: uuid.New(), TaskID: task.ID, Success: true, Output: []string{"hi"}}

	s.Send(context.Background(), ts.URL, task, report)

	select {
	case got := <-received:
		if got.TaskID != task.ID || !got.Success {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("webhook was never delivered")
	}
}

func TestSend_UnreachableURLDoesNotPanic(t *testing.T) {
	s := New(nil)
	task := model.Task{ID: uuid.New()}
	report := model.ExecutionReport{ID: uuid.New(), TaskID: task.ID}

	s.Send(context.Background(), "http://127.0.0.1:0/unreachable", task, report)
}
