package loadlib

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// manualTimers is a TimerService driven by Advance.
type manualTimers struct {
	mu     sync.Mutex
	now    time.Duration
	next   TimerHandle
	timers map[TimerHandle]*manualTimer
}

type manualTimer struct {
	handle   TimerHandle
	at       time.Duration
	interval time.Duration
	fn       func()
}

func newManualTimers() *manualTimers {
	return &manualTimers{timers: make(map[TimerHandle]*manualTimer)}
}

func (m *manualTimers) ScheduleOnce(after time.Duration, fn func()) TimerHandle {
	return m.add(after, 0, fn)
}

func (m *manualTimers) ScheduleRepeating(interval time.Duration, fn func()) TimerHandle {
	return m.add(interval, interval, fn)
}

func (m *manualTimers) add(after, interval time.Duration, fn func()) TimerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.timers[m.next] = &manualTimer{handle: m.next, at: m.now + after, interval: interval, fn: fn}
	return m.next
}

func (m *manualTimers) Cancel(h TimerHandle) {
	m.mu.Lock()
	delete(m.timers, h)
	m.mu.Unlock()
}

// Pending returns the number of scheduled timers.
func (m *manualTimers) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward and fires every due timer in order,
// outside the lock.
func (m *manualTimers) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	now := m.now
	var due []*manualTimer
	for _, t := range m.timers {
		if t.at <= now {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].handle < due[j].handle
	})
	for _, t := range due {
		if t.interval > 0 {
			t.at = now + t.interval
		} else {
			delete(m.timers, t.handle)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type testClass struct {
	name string
}

type testInstance struct {
	class     *testClass
	placement Placement
}

// fakeHandle records cancellation.
type fakeHandle struct {
	mu        sync.Mutex
	cancelled bool
	done      bool
}

func (h *fakeHandle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
}

func (h *fakeHandle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.cancelled && !h.done
}

func (h *fakeHandle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

type loadCall struct {
	ref        ClassRef
	handle     *fakeHandle
	onComplete func(Class, error)
}

// scriptedLoader records requests and lets the test complete them.
// Refs listed in sync complete before RequestLoad returns; refs in
// refuse make RequestLoad fail.
type scriptedLoader struct {
	mu     sync.Mutex
	calls  []*loadCall
	sync   map[ClassRef]Class
	refuse map[ClassRef]bool
}

func newScriptedLoader() *scriptedLoader {
	return &scriptedLoader{
		sync:   make(map[ClassRef]Class),
		refuse: make(map[ClassRef]bool),
	}
}

var errRefused = errors.New("refused")

func (l *scriptedLoader) RequestLoad(ref ClassRef, onComplete func(Class, error)) (Handle, error) {
	l.mu.Lock()
	if l.refuse[ref] {
		l.mu.Unlock()
		return nil, errRefused
	}
	call := &loadCall{ref: ref, handle: &fakeHandle{}, onComplete: onComplete}
	l.calls = append(l.calls, call)
	class, isSync := l.sync[ref]
	l.mu.Unlock()
	if isSync {
		call.handle.done = true
		onComplete(class, nil)
	}
	return call.handle, nil
}

func (l *scriptedLoader) Calls() []*loadCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*loadCall(nil), l.calls...)
}

func (l *scriptedLoader) Refs() []ClassRef {
	var refs []ClassRef
	for _, c := range l.Calls() {
		refs = append(refs, c.ref)
	}
	return refs
}

// Complete finishes the first outstanding call for ref.
func (l *scriptedLoader) Complete(ref ClassRef, class Class, err error) bool {
	l.mu.Lock()
	var (
		call *loadCall
		fn   func(Class, error)
	)
	for _, c := range l.calls {
		if c.ref == ref && c.onComplete != nil {
			call, fn = c, c.onComplete
			c.onComplete = nil
			break
		}
	}
	l.mu.Unlock()
	if call == nil {
		return false
	}
	call.handle.mu.Lock()
	call.handle.done = true
	call.handle.mu.Unlock()
	fn(class, err)
	return true
}

// testFactory builds testInstances and can be told to fail.
type testFactory struct {
	mu      sync.Mutex
	created int
	fail    bool
	panics  bool
}

var errBuild = errors.New("build failed")

func (f *testFactory) Create(class Class, placement Placement) (Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("factory exploded")
	}
	if f.fail {
		return nil, errBuild
	}
	f.created++
	return &testInstance{class: class.(*testClass), placement: placement}, nil
}

func (f *testFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// outcome collects continuation calls for one request.
type outcome struct {
	mu        sync.Mutex
	successes []Instance
	failures  []error
}

func (o *outcome) opts(priority int) *SubmitOpts {
	return &SubmitOpts{
		Priority: priority,
		OnSuccess: func(inst Instance) {
			o.mu.Lock()
			o.successes = append(o.successes, inst)
			o.mu.Unlock()
		},
		OnFailure: func(err error) {
			o.mu.Lock()
			o.failures = append(o.failures, err)
			o.mu.Unlock()
		},
	}
}

func (o *outcome) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.successes), len(o.failures)
}

func (o *outcome) lastErr() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.failures) == 0 {
		return nil
	}
	return o.failures[len(o.failures)-1]
}

type schedFixture struct {
	sched   *Scheduler
	loader  *scriptedLoader
	factory *testFactory
	timers  *manualTimers
}

func newFixture(maxConcurrent int) *schedFixture {
	f := &schedFixture{
		loader:  newScriptedLoader(),
		factory: &testFactory{},
		timers:  newManualTimers(),
	}
	s, err := NewScheduler(&SchedulerOpts{
		Loader:             f.loader,
		Factory:            f.factory,
		Timers:             f.timers,
		MaxConcurrentLoads: maxConcurrent,
	})
	if err != nil {
		panic(err)
	}
	f.sched = s
	return f
}
