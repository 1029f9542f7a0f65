// Package api implements the HTTP API Adapter (spec.md §6): a thin
// translator between JSON requests and Reactor messages. It is
// explicitly out of the scheduling core — none of the hard scheduling
// semantics live here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
	"github.com/gokayokyay/stewardx/internal/reactor"
	"github.com/gokayokyay/stewardx/internal/shared"
)

// Config wires a Server to its Reactor and feature flags.
type Config struct {
	Reactor            *reactor.Reactor
	Logger             *slog.Logger
	ServerCRUDFeature  bool
	PanelFeature       bool
	PanelDir           string // directory served under /app/*, when PanelFeature is set
	AllowOrigins       []string
}

// Server serves the task-scheduler HTTP API.
type Server struct {
	cfg Config
}

// New constructs a Server from cfg.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg}
}

// Handler builds the route table (spec.md §6), gating every write-CRUD
// route on the server_crud_feature config flag and the static panel
// route on panel_feature (SPEC_FULL.md §1.3).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/tasks", s.handleTasksCollection)
	mux.HandleFunc("/tasks/", s.handleTaskByID)
	mux.HandleFunc("/execute", s.handleExecuteCollection)
	mux.HandleFunc("/execute/", s.handleExecuteByID)
	mux.HandleFunc("/abort", s.handleAbortCollection)
	mux.HandleFunc("/abort/", s.handleAbortByID)
	mux.HandleFunc("/activetasks", s.handleActiveTasks)
	mux.HandleFunc("/task/", s.handleTaskReports)
	mux.HandleFunc("/reports", s.handleReportsCollection)
	mux.HandleFunc("/reports/", s.handleReportByID)
	mux.HandleFunc("/ws/output", s.handleWSOutput)

	if s.cfg.PanelFeature && s.cfg.PanelDir != "" {
		mux.Handle("/app/", http.StripPrefix("/app/", http.FileServer(http.Dir(s.cfg.PanelDir))))
	}

	return s.withTrace(mux)
}

// withTrace tags every request with a trace_id (shared.NewTraceID) and
// logs its method, path and outcome — every log line a request's
// handlers emit can be correlated back to it via shared.TraceID(ctx).
func (s *Server) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := shared.NewTraceID()
		ctx := shared.WithTraceID(r.Context(), traceID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctx))

		s.cfg.Logger.Info("api_request",
			slog.String("trace_id", traceID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// writeJSON is the common success-path response writer.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg} at the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// reactorError turns a Reactor call's error into the right HTTP
// response, special-casing spec.md §8 scenario 6's exact body.
func reactorError(w http.ResponseWriter, err error) {
	if errors.Is(err, reactor.ErrNotAwake) {
		writeError(w, http.StatusInternalServerError, "Reactor isn't awake.")
		return
	}
	var execErr *model.TaskExecError
	if errors.As(err, &execErr) {
		writeError(w, http.StatusBadRequest, execErr.Message)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// requireCRUD is the common guard for every write-CRUD route (spec.md
// §6: "absent" when the flag is off means these routes 404).
func (s *Server) requireCRUD(w http.ResponseWriter) bool {
	if !s.cfg.ServerCRUDFeature {
		http.NotFound(w, nil)
		return false
	}
	return true
}

func parseOffset(r *http.Request) int64 {
	v := r.URL.Query().Get("offset")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parsePathID(prefix, path string) (uuid.UUID, error) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	return uuid.Parse(rest)
}
