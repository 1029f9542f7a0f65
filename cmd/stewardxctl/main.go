// Command stewardxctl is a thin client for stewardxd's control socket
// (spec.md §6, SPEC_FULL.md §1.3): it dials the UNIX socket and issues
// the recognized command via the HTTP Host header, the way
// original_source/src/socket/mod.rs's curl example describes:
// "curl --unix-socket /tmp/stewardx.sock http://stop/".
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: %s <stop|status>

Talks to the stewardxd control socket at ${STEWARDX_DIR:-/tmp}/stewardx.sock.
`, os.Args[0])
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 || (args[0] != "stop" && args[0] != "status") {
		flag.Usage()
		os.Exit(2)
	}
	command := args[0]

	socketDir := os.Getenv("STEWARDX_DIR")
	if socketDir == "" {
		socketDir = "/tmp"
	}
	socketPath := socketDir + "/stewardx.sock"

	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}

	resp, err := client.Get("http://" + command + "/")
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not reach stewardxd at %s: %v\n", socketPath, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}
