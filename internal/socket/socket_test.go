package socket

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeStatus struct{ count int }

func (f fakeStatus) ActiveTaskCount(ctx context.Context) (int, error) {
	return f.count, nil
}

func clientFor(path string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		},
	}
}

func TestManager_StatusCommand(t *testing.T) {
	t.Setenv("STEWARDX_DIR", t.TempDir())

	m := New(fakeStatus{count: 3}, func() {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- m.Listen(ctx) }()
	waitForSocket(t, m.path)

	client := clientFor(m.path)
	resp, err := client.Get("http://status/")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if got := string(body); !strings.Contains(got, `"active_task_count":3`) {
		t.Fatalf("got body %q", got)
	}

	cancel()
	<-errCh
}

func TestManager_UnrecognizedCommand(t *testing.T) {
	t.Setenv("STEWARDX_DIR", t.TempDir())

	m := New(fakeStatus{}, func() {}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Listen(ctx)
	waitForSocket(t, m.path)

	client := clientFor(m.path)
	resp, err := client.Get("http://bogus/")
	if err != nil {
		t.Fatalf("GET bogus: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Possible commands") {
		t.Fatalf("got body %q", string(body))
	}
}

func TestManager_StopCommandInvokesCallback(t *testing.T) {
	t.Setenv("STEWARDX_DIR", t.TempDir())

	stopped := make(chan struct{})
	m := New(fakeStatus{}, func() { close(stopped) }, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Listen(ctx)
	waitForSocket(t, m.path)

	client := clientFor(m.path)
	resp, err := client.Get("http://stop/")
	if err != nil {
		t.Fatalf("GET stop: %v", err)
	}
	resp.Body.Close()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the stop callback")
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("control socket never came up at %s", filepath.Clean(path))
}
