package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/warpdl/asyncload/internal/loader"
	"github.com/warpdl/asyncload/internal/server"
	"github.com/warpdl/asyncload/internal/timer"
	"github.com/warpdl/asyncload/internal/view"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

const testToken = "cmd-test-token"

// captureOutput captures stdout and stderr while f runs.
func captureOutput(f func()) (stdout, stderr string) {
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	var bufOut, bufErr bytes.Buffer
	outDone := make(chan struct{})
	errDone := make(chan struct{})
	go func() { io.Copy(&bufOut, rOut); close(outDone) }()
	go func() { io.Copy(&bufErr, rErr); close(errDone) }()

	f()

	wOut.Close()
	wErr.Close()
	<-outDone
	<-errDone
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	rOut.Close()
	rErr.Close()

	return bufOut.String(), bufErr.String()
}

// assertContains checks if output contains the expected substring.
func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// assertErrorFormat checks for "asyncload: cmd[action]:".
func assertErrorFormat(t *testing.T, output, cmd, action string) {
	t.Helper()
	pattern := "asyncload: " + cmd + "[" + action + "]:"
	if !strings.Contains(output, pattern) {
		t.Errorf("expected error format %q, got:\n%s", pattern, output)
	}
}

// memBackend resolves mem://<name>. "missing" fails and names starting
// with "slow" block until cancelled.
func memBackend(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error) {
	_, name, _ := loader.SplitRef(ref)
	switch {
	case name == "missing":
		return nil, loader.NewPermanentError("mem", "resolve", loader.ErrNotFound)
	case strings.HasPrefix(name, "slow"):
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &view.Class{Ref: ref, Name: name, Title: "Title " + name}, nil
}

// startDaemon serves the RPC stack on an httptest server and returns its
// URI.
func startDaemon(t *testing.T) string {
	t.Helper()
	timers := timer.New(context.Background(), nil)
	router := loader.NewRouter(&loader.RouterOpts{MaxRetries: -1})
	router.Register("mem", loader.BackendFunc(memBackend))
	notifier := server.NewRPCNotifier(nil)
	stack := view.NewStack(nil)
	host := loadlib.NewHost(loadlib.SchedulerOpts{
		Loader:          router,
		Factory:         stack,
		Timers:          timers,
		CleanupInterval: -1,
		Handlers:        notifier.Handlers(nil),
	})
	rpc := server.NewRPCServer(&server.RPCConfig{Secret: testToken, Version: "1.0.0", Views: stack}, host, nil, nil)
	ts := httptest.NewServer(server.NewServer(server.Options{}, rpc, notifier, nil).Handler())
	t.Cleanup(func() {
		notifier.StopAll()
		ts.Close()
		rpc.Close()
		host.Close()
		router.Close()
		timers.Close()
	})
	return "tcp://" + ts.Listener.Addr().String()
}

// run executes the CLI against uri and returns stdout.
func run(t *testing.T, uri string, args ...string) string {
	t.Helper()
	full := append([]string{"asyncload", "--daemon-uri", uri, "--token", testToken}, args...)
	var err error
	out, _ := captureOutput(func() {
		err = Execute(full, BuildArgs{Version: "1.0.0", BuildType: "test"})
	})
	if err != nil {
		t.Fatalf("Execute %v: %v", args, err)
	}
	return out
}
