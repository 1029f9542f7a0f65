// Package workload implements the Executable capability (spec.md §4.5)
// and the central (kind_tag, payload_string) → Executable factory named
// in spec.md §9: the single site that knows every workload variant.
package workload

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gokayokyay/stewardx/internal/model"
)

// Known workload kind tags.
const (
	KindCommand   = "cmd"
	KindContainer = "container"
)

// Executable is implemented by every workload adapter.
type Executable interface {
	// Exec starts the workload and returns a lazy, finite channel of
	// output lines. The channel is closed when the workload's stream
	// ends. A non-nil error means the workload never started.
	Exec(ctx context.Context) (<-chan string, *model.TaskExecError)
	// Abort attempts to terminate the in-flight workload. It reports
	// true iff termination succeeded or the workload had already ended.
	Abort() bool
	ID() uuid.UUID
	Kind() string
}

// Serializable is implemented by adapters whose payload round-trips
// through an opaque string (spec.md §4.5 "Serialization").
type Serializable interface {
	// Payload returns the canonical opaque payload string for this
	// workload's configuration.
	Payload() (string, error)
}

// New is the central factory: it resolves the Workload Adapter by
// task_type, decodes the payload (tolerating double-encoded JSON), and
// returns an Executable or a MalformedSerde/UnknownTaskType error.
func New(taskID uuid.UUID, kind, payload string) (Executable, *model.TaskExecError) {
	switch kind {
	case KindCommand:
		return newCommandTask(taskID, payload)
	case KindContainer:
		return newContainerTask(taskID, payload)
	default:
		return nil, model.NewUnknownTaskType(kind)
	}
}

// BuildPayload constructs the canonical opaque payload string for a
// given task kind from a property bag supplied by the API (spec.md
// §4.5 "Construction from property bag"), or a MalformedSerde error
// naming the missing/invalid property.
func BuildPayload(kind string, props json.RawMessage) (string, *model.TaskExecError) {
	switch kind {
	case KindCommand:
		return buildCommandPayload(props)
	case KindContainer:
		return buildContainerPayload(props)
	default:
		return "", model.NewUnknownTaskType(kind)
	}
}

// decodeTolerant unmarshals payload into target, tolerating the
// double-encoding the spec requires adapters to accept: the payload may
// be the JSON object directly, or a JSON string containing that JSON
// (spec.md §4.5).
func decodeTolerant(payload string, target any) error {
	if err := json.Unmarshal([]byte(payload), target); err == nil {
		return nil
	}
	var inner string
	if err := json.Unmarshal([]byte(payload), &inner); err != nil {
		return fmt.Errorf("payload is neither a JSON object nor a JSON-encoded string: %w", err)
	}
	return json.Unmarshal([]byte(inner), target)
}
