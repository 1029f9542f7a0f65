package api

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// handleWSOutput streams live OutputEvent lines to a subscriber
// (SPEC_FULL.md §1.3), optionally filtered to a single task via
// ?task_id=. Subscribers ride the single process-wide OutputBus
// (spec.md §9's per-firing broadcaster design).
func (s *Server) handleWSOutput(w http.ResponseWriter, r *http.Request) {
	var filter *uuid.UUID
	if raw := r.URL.Query().Get("task_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "malformed task_id", http.StatusBadRequest)
			return
		}
		filter = &id
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowOrigins,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sub := s.cfg.Reactor.Outputs().Subscribe()
	defer s.cfg.Reactor.Outputs().Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Ch():
			if !ok {
				return
			}
			if filter != nil && evt.TaskID != *filter {
				continue
			}
			if err := wsjson.Write(ctx, conn, evt); err != nil {
				return
			}
		}
	}
}

func pathIDBeforeSuffix(path, prefix, suffix string) (uuid.UUID, error) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.TrimSuffix(rest, suffix)
	rest = strings.Trim(rest, "/")
	return uuid.Parse(rest)
}
