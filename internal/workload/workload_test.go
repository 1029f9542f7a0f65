package workload

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNew_UnknownKind(t *testing.T) {
	_, execErr := New(uuid.New(), "carrier-pigeon", "{}")
	if execErr == nil {
		t.Fatal("expected an error for an unknown task kind")
	}
	if execErr.Category != "UnknownTaskType" {
		t.Fatalf("got category %q, want UnknownTaskType", execErr.Category)
	}
}

func TestNew_Command(t *testing.T) {
	ex, execErr := New(uuid.New(), KindCommand, `{"command":"echo hello"}`)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}
	if ex.Kind() != KindCommand {
		t.Fatalf("got kind %q, want %q", ex.Kind(), KindCommand)
	}
}

func TestNewCommandTask_MissingCommand(t *testing.T) {
	_, execErr := New(uuid.New(), KindCommand, `{}`)
	if execErr == nil {
		t.Fatal("expected an error for a missing command")
	}
	if execErr.Message != "Required property not specified: 'command'" {
		t.Fatalf("got message %q", execErr.Message)
	}
}

func TestNewCommandTask_DoubleEncoded(t *testing.T) {
	// The payload may arrive as a JSON string containing the object,
	// not just the object itself (spec.md §4.5).
	doubled := `"{\"command\":\"echo hi\"}"`
	ex, execErr := New(uuid.New(), KindCommand, doubled)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}
	payload, err := ex.(Serializable).Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if payload == "" {
		t.Fatal("expected a non-empty canonical payload")
	}
}

func TestCommandTask_Exec(t *testing.T) {
	ex, execErr := New(uuid.New(), KindCommand, `{"command":"echo hello"}`)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lines, execErr := ex.Exec(ctx)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v, want [hello]", got)
	}
}

func TestCommandTask_AbortBeforeExecIsIdempotent(t *testing.T) {
	ex, execErr := New(uuid.New(), KindCommand, `{"command":"sleep 5"}`)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}
	if !ex.Abort() {
		t.Fatal("aborting a never-started task should report success")
	}
}

func TestBuildPayload_Command_MissingProperty(t *testing.T) {
	_, execErr := BuildPayload(KindCommand, []byte(`{}`))
	if execErr == nil {
		t.Fatal("expected an error for a missing 'command' property")
	}
	if execErr.Message != "Required property not specified: 'command'" {
		t.Fatalf("got message %q", execErr.Message)
	}
}

func TestBuildPayload_Command_Valid(t *testing.T) {
	payload, execErr := BuildPayload(KindCommand, []byte(`{"command":"echo hi"}`))
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}
	if payload == "" {
		t.Fatal("expected a non-empty payload")
	}
}

func TestBuildPayload_Container_MissingImage(t *testing.T) {
	_, execErr := BuildPayload(KindContainer, []byte(`{}`))
	if execErr == nil {
		t.Fatal("expected an error for a missing 'image' property")
	}
}

func TestBuildPayload_Container_Valid(t *testing.T) {
	payload, execErr := BuildPayload(KindContainer, []byte(`{"image":{"kind":"Image","body":"alpine:latest"},"env":["FOO=bar"]}`))
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}
	if payload == "" {
		t.Fatal("expected a non-empty payload")
	}
}

func TestNewContainerTask_InvalidKind(t *testing.T) {
	_, execErr := New(uuid.New(), KindContainer, `{"image_kind":"Tarball","image_body":"x"}`)
	if execErr == nil {
		t.Fatal("expected an error for an invalid image kind")
	}
}

func TestContainerTask_ImageTagIsDeterministic(t *testing.T) {
	id := uuid.New()
	ex1, execErr := New(id, KindContainer, `{"image_kind":"File","image_body":"FROM alpine"}`)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}
	ct1 := ex1.(*ContainerTask)

	ex2, execErr := New(id, KindContainer, `{"image_kind":"File","image_body":"FROM alpine"}`)
	if execErr != nil {
		t.Fatalf("unexpected error: %v", execErr)
	}
	ct2 := ex2.(*ContainerTask)

	if ct1.imageTag() != ct2.imageTag() {
		t.Fatalf("expected the same task id to produce the same image tag, got %q and %q", ct1.imageTag(), ct2.imageTag())
	}
}
