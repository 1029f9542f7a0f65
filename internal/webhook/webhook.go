// Package webhook implements the best-effort webhook-on-completion
// feature (SPEC_FULL.md §1.3, grounded on original_source/src/models/
// post_webhook_model.rs): after a firing's ExecutionReport is
// persisted, POST it as JSON to the task's configured webhook_url.
// Delivery never blocks report persistence and a failure is logged,
// never fatal — the report has already been saved by the time Send
// runs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gokayokyay/stewardx/internal/model"
)

// Sender POSTs ExecutionReport JSON to a task's webhook_url.
type Sender struct {
	client *http.Client
	logger *slog.Logger
}

// New builds a Sender with a bounded per-request timeout so a slow or
// unreachable endpoint can never stall the Reactor's finishFiring path
// beyond a few seconds.
func New(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Send POSTs report to url, logging (never returning) any failure.
func (s *Sender) Send(ctx context.Context, url string, task model.Task, report model.ExecutionReport) {
	body, err := json.Marshal(report)
	if err != nil {
		s.logger.Error("webhook_marshal_failed", slog.String("task_id", task.ID.String()), slog.Any("error", err))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("webhook_request_build_failed", slog.String("task_id", task.ID.String()), slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook_delivery_failed", slog.String("task_id", task.ID.String()), slog.String("url", url), slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.logger.Warn("webhook_delivery_rejected",
			slog.String("task_id", task.ID.String()),
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
		)
	}
}
