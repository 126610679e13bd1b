package loadlib

import "sync"

// Host owns a single Scheduler for a process. The scheduler is created on
// first use and torn down by Close; after Close, Scheduler reports
// ErrNoScheduler.
type Host struct {
	opts SchedulerOpts

	mu     sync.Mutex
	sched  *Scheduler
	closed bool
}

// NewHost returns a Host that builds its scheduler from opts on demand.
func NewHost(opts SchedulerOpts) *Host {
	return &Host{opts: opts}
}

// Scheduler returns the hosted scheduler, creating it if needed.
func (h *Host) Scheduler() (*Scheduler, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrNoScheduler
	}
	if h.sched == nil {
		s, err := NewScheduler(&h.opts)
		if err != nil {
			return nil, err
		}
		h.sched = s
	}
	return h.sched, nil
}

// Close shuts the hosted scheduler down. It is safe to call more than once.
func (h *Host) Close() error {
	h.mu.Lock()
	s := h.sched
	h.sched = nil
	h.closed = true
	h.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
