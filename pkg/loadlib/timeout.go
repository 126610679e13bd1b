package loadlib

import "time"

type armedTimer struct {
	handle TimerHandle
	gen    uint64
}

// TimeoutController keeps one armed deadline per in-flight request.
// It is not safe for concurrent use; the Scheduler guards it.
type TimeoutController struct {
	timers TimerService
	armed  map[RequestID]armedTimer
	gen    uint64
}

// NewTimeoutController creates a controller scheduling through timers.
func NewTimeoutController(timers TimerService) *TimeoutController {
	return &TimeoutController{
		timers: timers,
		armed:  make(map[RequestID]armedTimer),
	}
}

// Arm schedules onFire after d for id. onFire receives a generation
// token the caller passes back to Fired. Fails with ErrTimerArmed if id
// already has an outstanding timer.
func (tc *TimeoutController) Arm(id RequestID, d time.Duration, onFire func(gen uint64)) error {
	if _, ok := tc.armed[id]; ok {
		return ErrTimerArmed
	}
	tc.gen++
	gen := tc.gen
	h := tc.timers.ScheduleOnce(d, func() { onFire(gen) })
	tc.armed[id] = armedTimer{handle: h, gen: gen}
	return nil
}

// Disarm cancels the timer for id. Returns false if none was armed.
func (tc *TimeoutController) Disarm(id RequestID) bool {
	t, ok := tc.armed[id]
	if !ok {
		return false
	}
	delete(tc.armed, id)
	tc.timers.Cancel(t.handle)
	return true
}

// Fired consumes the armed entry for id if gen is still the current
// timer. A false return means the fire raced a disarm and must be ignored.
func (tc *TimeoutController) Fired(id RequestID, gen uint64) bool {
	t, ok := tc.armed[id]
	if !ok || t.gen != gen {
		return false
	}
	delete(tc.armed, id)
	return true
}

// Len returns the number of armed timers.
func (tc *TimeoutController) Len() int {
	return len(tc.armed)
}

// DisarmAll cancels every outstanding timer.
func (tc *TimeoutController) DisarmAll() {
	for id, t := range tc.armed {
		tc.timers.Cancel(t.handle)
		delete(tc.armed, id)
	}
}
