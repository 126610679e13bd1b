package loadlib

import (
	"errors"
	"testing"
)

func TestHost_LazyAndClose(t *testing.T) {
	h := NewHost(SchedulerOpts{
		Loader:  newScriptedLoader(),
		Factory: &testFactory{},
		Timers:  newManualTimers(),
	})
	s1, err := h.Scheduler()
	if err != nil {
		t.Fatal(err)
	}
	s2, _ := h.Scheduler()
	if s1 != s2 {
		t.Fatal("expected the same scheduler")
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Scheduler(); !errors.Is(err, ErrNoScheduler) {
		t.Fatalf("expected ErrNoScheduler, got %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHost_InvalidOpts(t *testing.T) {
	h := NewHost(SchedulerOpts{})
	if _, err := h.Scheduler(); err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}
