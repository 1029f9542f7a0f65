// Package socket implements the control socket (spec.md §6, SPEC_FULL.md
// §1.3): a UNIX domain listener at ${STEWARDX_DIR:-/tmp}/stewardx.sock
// serving plain HTTP, where the recognized command travels in the Host
// header — grounded on original_source/src/socket/mod.rs's
// single-command-in-Host-header dispatch, extended here with a
// `status` command alongside `stop`.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// StatusProvider supplies the live figures the `status` command reports.
type StatusProvider interface {
	ActiveTaskCount(ctx context.Context) (int, error)
}

// Manager owns the control socket's listener and lifecycle.
type Manager struct {
	path     string
	status   StatusProvider
	logger   *slog.Logger
	startedAt time.Time
	stop     func()

	ln     net.Listener
	server *http.Server
}

// Path returns ${STEWARDX_DIR:-/tmp}/stewardx.sock.
func Path() string {
	dir := os.Getenv("STEWARDX_DIR")
	if dir == "" {
		dir = "/tmp"
	}
	return filepath.Join(dir, "stewardx.sock")
}

// New constructs a Manager. stop is invoked (after the `stop` command's
// grace period) to shut the daemon down; status reports the figures the
// `status` command returns.
func New(status StatusProvider, stop func(), logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		path:      Path(),
		status:    status,
		stop:      stop,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Listen binds the socket, removing any stale file left behind by a
// crashed prior instance, and serves until ctx is cancelled.
func (m *Manager) Listen(ctx context.Context) error {
	_ = os.Remove(m.path)

	ln, err := net.Listen("unix", m.path)
	if err != nil {
		return fmt.Errorf("listen on control socket %s: %w", m.path, err)
	}
	m.ln = ln
	m.server = &http.Server{Handler: http.HandlerFunc(m.handle)}

	go func() {
		<-ctx.Done()
		_ = m.server.Close()
	}()

	m.logger.Info("control_socket_listening", slog.String("path", m.path))
	err = m.server.Serve(ln)
	_ = os.Remove(m.path)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// possibleCommands lists every Host value the socket understands, for
// the help text an unrecognized command gets back.
var possibleCommands = []string{"stop", "status"}

func (m *Manager) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Host {
	case "stop":
		m.handleStop(w, r)
	case "status":
		m.handleStatus(w, r)
	default:
		fmt.Fprintf(w, "Possible commands: %v", possibleCommands)
	}
}

// handleStop replies immediately, then stops the daemon after a short
// grace period so the response reaches the caller first (mirrors
// original_source/src/socket/mod.rs's tokio::spawn + sleep(0.25s)).
func (m *Manager) handleStop(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "Goodbye!")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	go func() {
		time.Sleep(250 * time.Millisecond)
		if m.stop != nil {
			m.stop()
		}
	}()
}

type statusResponse struct {
	ActiveTaskCount int     `json:"active_task_count"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

func (m *Manager) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := m.status.ActiveTaskCount(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		ActiveTaskCount: count,
		UptimeSeconds:   time.Since(m.startedAt).Seconds(),
	})
}
