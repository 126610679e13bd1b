//go:build !windows

package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestServer_UnixSocket(t *testing.T) {
	env := newTestEnv(t)
	sock := filepath.Join(t.TempDir(), "rpc.sock")
	s := NewServer(Options{Socket: sock}, env.rpc, env.notifier, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	waitFor(t, "listener", func() bool { return s.Addr() != nil })
	if got := s.Addr().Network(); got != "unix" {
		t.Fatalf("network = %q, want unix", got)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v", err)
	}
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Fatalf("socket file should be removed, stat err = %v", err)
	}
}

func TestServer_UnixSocketFallsBackToTCP(t *testing.T) {
	env := newTestEnv(t)
	sock := filepath.Join(t.TempDir(), "missing-dir", "rpc.sock")
	s := NewServer(Options{Socket: sock, Listen: "127.0.0.1:0"}, env.rpc, env.notifier, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	waitFor(t, "listener", func() bool { return s.Addr() != nil })
	if got := s.Addr().Network(); got != "tcp" {
		t.Fatalf("network = %q, want tcp", got)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v", err)
	}
}

func TestServer_UnixSocketNoFallback(t *testing.T) {
	env := newTestEnv(t)
	sock := filepath.Join(t.TempDir(), "missing-dir", "rpc.sock")
	s := NewServer(Options{Socket: sock}, env.rpc, env.notifier, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected an error without a tcp fallback")
	}
}
