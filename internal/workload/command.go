package workload

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/gokayokyay/stewardx/internal/model"
)

// commandPayload is the Command adapter's internal configuration,
// round-tripped through the opaque payload string {command: "…"}
// (spec.md §4.5).
type commandPayload struct {
	Command string `json:"command"`
}

// CommandTask tokenizes its command on ASCII space and pipes stdout
// line by line. Abort sends SIGKILL to the child (spec.md §4.5).
type CommandTask struct {
	id      uuid.UUID
	payload commandPayload

	mu  sync.Mutex
	cmd *exec.Cmd
}

func newCommandTask(taskID uuid.UUID, payload string) (*CommandTask, *model.TaskExecError) {
	var p commandPayload
	if err := decodeTolerant(payload, &p); err != nil {
		return nil, model.NewMalformedSerde(err.Error())
	}
	if strings.TrimSpace(p.Command) == "" {
		return nil, model.NewMalformedSerde("Required property not specified: 'command'")
	}
	return &CommandTask{id: taskID, payload: p}, nil
}

func (t *CommandTask) ID() uuid.UUID { return t.id }
func (t *CommandTask) Kind() string  { return KindCommand }

func (t *CommandTask) Payload() (string, error) {
	return payloadString(t.payload)
}

// Exec tokenizes the command on ASCII space, spawns the first token
// with the remainder as arguments, and yields one line per
// newline-separated chunk of stdout (spec.md §4.5).
func (t *CommandTask) Exec(ctx context.Context) (<-chan string, *model.TaskExecError) {
	tokens := strings.Split(t.payload.Command, " ")
	tokens = filterEmpty(tokens)
	if len(tokens) == 0 {
		return nil, model.NewInvalidCmd(fmt.Sprintf("cannot tokenize command into a program: %q", t.payload.Command))
	}

	cmd := exec.CommandContext(ctx, tokens[0], tokens[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, model.NewGeneric(err.Error())
	}

	if err := cmd.Start(); err != nil {
		return nil, model.NewInvalidCmd(err.Error())
	}

	t.mu.Lock()
	t.cmd = cmd
	t.mu.Unlock()

	lines := make(chan string)
	go func() {
		streamLines(stdout, lines)
		_ = cmd.Wait()
		close(lines)
	}()

	return lines, nil
}

func streamLines(r io.Reader, out chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// Abort sends SIGKILL to the child process (spec.md §4.5). It reports
// true iff the process was killed or had already exited.
func (t *CommandTask) Abort() bool {
	t.mu.Lock()
	cmd := t.cmd
	t.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return true
	}
	err := cmd.Process.Signal(syscall.SIGKILL)
	return err == nil || errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone)
}

func filterEmpty(tokens []string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func payloadString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// buildCommandPayload validates a {command: string} property bag and
// returns its canonical payload string, naming the missing property
// exactly as spec.md §8 scenario 3 requires.
func buildCommandPayload(props json.RawMessage) (string, *model.TaskExecError) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(props, &m); err != nil {
		return "", model.NewMalformedSerde(err.Error())
	}
	raw, ok := m["command"]
	if !ok {
		return "", model.NewMalformedSerde("Required property not specified: 'command'")
	}
	var command string
	if err := json.Unmarshal(raw, &command); err != nil || strings.TrimSpace(command) == "" {
		return "", model.NewMalformedSerde("Required property not specified: 'command'")
	}
	out, err := sjson.Set("{}", "command", command)
	if err != nil {
		return "", model.NewGeneric(err.Error())
	}
	return out, nil
}
