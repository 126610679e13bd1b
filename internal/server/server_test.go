package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/internal/metrics"
)

func TestServer_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	m := metrics.New()
	sched, err := env.host.Scheduler()
	if err != nil {
		t.Fatalf("Scheduler: %v", err)
	}
	if err := m.RegisterScheduler(sched); err != nil {
		t.Fatalf("RegisterScheduler: %v", err)
	}
	h := NewServer(Options{Gatherer: m.Registry}, env.rpc, env.notifier, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, common.MetricsPath, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "asyncload_scheduler_max_concurrent_loads 3") {
		t.Fatalf("metrics output missing scheduler gauge:\n%s", body)
	}
}

func TestServer_NoMetricsWithoutGatherer(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, common.MetricsPath, nil)
	rr := httptest.NewRecorder()
	env.handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestServer_StartAndShutdownTCP(t *testing.T) {
	env := newTestEnv(t)
	s := NewServer(Options{Listen: "127.0.0.1:0"}, env.rpc, env.notifier, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	waitFor(t, "listener", func() bool { return s.Addr() != nil })

	req, _ := http.NewRequest(http.MethodPost, "http://"+s.Addr().String()+common.RPCPath,
		bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"system.getVersion"}`))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"1.2.3"`) {
		t.Fatalf("unexpected response %d: %s", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestValidToken(t *testing.T) {
	tests := []struct {
		secret, header string
		want           bool
	}{
		{"s", "Bearer s", true},
		{"s", "Bearer t", false},
		{"s", "s", false},
		{"s", "bearer s", false},
		{"", "Bearer ", false},
	}
	for _, tt := range tests {
		if got := validToken(tt.secret, tt.header); got != tt.want {
			t.Errorf("validToken(%q, %q) = %v, want %v", tt.secret, tt.header, got, tt.want)
		}
	}
}
