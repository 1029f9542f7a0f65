package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/reactor"
)

// ---- /tasks ----

func (s *Server) handleTasksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := s.cfg.Reactor.ListTasks(r.Context(), parseOffset(r))
		if err != nil {
			reactorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)

	case http.MethodPost:
		if !s.requireCRUD(w) {
			return
		}
		var params reactor.NewTaskParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		task, err := s.cfg.Reactor.CreateTask(r.Context(), params)
		if err != nil {
			reactorError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)

	case http.MethodDelete:
		if !s.requireCRUD(w) {
			return
		}
		var body struct {
			TaskID uuid.UUID `json:"task_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if err := s.cfg.Reactor.DeleteTask(r.Context(), body.TaskID); err != nil {
			reactorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- /tasks/{id} ----

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID("/tasks/", r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed task id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := s.cfg.Reactor.GetTask(r.Context(), id)
		if err != nil {
			reactorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodPost:
		if !s.requireCRUD(w) {
			return
		}
		var params reactor.NewTaskParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		task, err := s.cfg.Reactor.UpdateTask(r.Context(), id, params)
		if err != nil {
			reactorError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- /execute, /execute/{id} ----

func (s *Server) handleExecuteCollection(w http.ResponseWriter, r *http.Request) {
	if !s.requireCRUD(w) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		TaskID uuid.UUID `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	s.executeTask(w, r, body.TaskID)
}

func (s *Server) handleExecuteByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireCRUD(w) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := parsePathID("/execute/", r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed task id")
		return
	}
	s.executeTask(w, r, id)
}

func (s *Server) executeTask(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := s.cfg.Reactor.ExecuteNow(r.Context(), id); err != nil {
		reactorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// ---- /abort, /abort/{id} ----

func (s *Server) handleAbortCollection(w http.ResponseWriter, r *http.Request) {
	if !s.requireCRUD(w) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		TaskID uuid.UUID `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	s.abortTask(w, r, body.TaskID)
}

func (s *Server) handleAbortByID(w http.ResponseWriter, r *http.Request) {
	if !s.requireCRUD(w) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := parsePathID("/abort/", r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed task id")
		return
	}
	s.abortTask(w, r, id)
}

func (s *Server) abortTask(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	aborted, err := s.cfg.Reactor.AbortTask(r.Context(), id)
	if err != nil {
		reactorError(w, err)
		return
	}
	if !aborted {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// ---- /activetasks ----

func (s *Server) handleActiveTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tasks, err := s.cfg.Reactor.ActiveTasks(r.Context())
	if err != nil {
		reactorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ---- /task/{id}/reports ----

func (s *Server) handleTaskReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := pathIDBeforeSuffix(r.URL.Path, "/task/", "/reports")
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed task id")
		return
	}
	reports, err := s.cfg.Reactor.ListReportsForTask(r.Context(), id, parseOffset(r))
	if err != nil {
		reactorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// ---- /reports, /reports/{id} ----

func (s *Server) handleReportsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reports, err := s.cfg.Reactor.ListReports(r.Context(), parseOffset(r))
	if err != nil {
		reactorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := parsePathID("/reports/", r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed report id")
		return
	}
	report, err := s.cfg.Reactor.GetReport(r.Context(), id)
	if err != nil {
		reactorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
