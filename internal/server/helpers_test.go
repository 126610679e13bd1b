package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/warpdl/asyncload/internal/loader"
	"github.com/warpdl/asyncload/internal/timer"
	"github.com/warpdl/asyncload/internal/view"
	"github.com/warpdl/asyncload/pkg/loadlib"
	"github.com/warpdl/asyncload/pkg/logger"
)

const testSecret = "test-rpc-secret"

// memBackend resolves mem://<name> into a view class. Names starting with
// "slow" block until the context is cancelled; "missing" fails.
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

type testEnv struct {
	host     *loadlib.Host
	rpc      *RPCServer
	notifier *RPCNotifier
	stack    *view.Stack
	log      *logger.MockLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ml := logger.NewMockLogger()
	timers := timer.New(context.Background(), nil)
	router := loader.NewRouter(&loader.RouterOpts{MaxRetries: -1})
	router.Register("mem", loader.BackendFunc(memBackend))
	stack := view.NewStack(nil)
	notifier := NewRPCNotifier(nil)
	host := loadlib.NewHost(loadlib.SchedulerOpts{
		Loader:          router,
		Factory:         stack,
		Timers:          timers,
		CleanupInterval: -1,
		Handlers:        notifier.Handlers(nil),
	})
	rpc := NewRPCServer(&RPCConfig{Secret: testSecret, Version: "1.2.3", Commit: "abc", Views: stack}, host, nil, ml)
	t.Cleanup(func() {
		rpc.Close()
		host.Close()
		router.Close()
		timers.Close()
	})
	return &testEnv{host: host, rpc: rpc, notifier: notifier, stack: stack, log: ml}
}

func (e *testEnv) handler() http.Handler {
	return NewServer(Options{}, e.rpc, e.notifier, nil).Handler()
}

// rpcCall posts a JSON-RPC request and returns the status code and the
// decoded response.
func rpcCall(t *testing.T, h http.Handler, method string, params any, token string) (int, map[string]any) {
	t.Helper()
	body := map[string]any{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		body["params"] = params
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/jsonrpc", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	raw, _ := io.ReadAll(rr.Result().Body)
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("unmarshal response: %v (body: %s)", err, raw)
		}
	}
	return rr.Code, out
}

func resultOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	if e, ok := resp["error"]; ok {
		t.Fatalf("unexpected error: %v", e)
	}
	res, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("result is %T: %v", resp["result"], resp)
	}
	return res
}

func errorCode(t *testing.T, resp map[string]any) int {
	t.Helper()
	e, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error, got %v", resp)
	}
	return int(e["code"].(float64))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
