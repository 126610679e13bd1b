package loadlib

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/asyncload/pkg/logger"
)

const (
	// DefaultMaxConcurrentLoads is the active-set capacity used when none is configured.
	DefaultMaxConcurrentLoads = 3
	// DefaultLoadTimeout is the per-request deadline used when none is configured.
	DefaultLoadTimeout = 30 * time.Second
	// MinLoadTimeout is the lower clamp applied by SetLoadTimeout.
	MinLoadTimeout = time.Second
	// DefaultCleanupInterval is the period of the cancellation registry compaction.
	DefaultCleanupInterval = 5 * time.Second
)

type requestState int

const (
	statePending requestState = iota
	stateActive
	stateCompleted
	stateCancelled
)

// SchedulerOpts configures a Scheduler.
type SchedulerOpts struct {
	// Loader resolves identifiers. Required.
	Loader Loader
	// Factory constructs instances from resolved classes. Required.
	Factory InstanceFactory
	// Timers arms load deadlines and the compaction task. Required.
	Timers TimerService
	// MaxConcurrentLoads bounds the active set. Defaults to DefaultMaxConcurrentLoads.
	MaxConcurrentLoads int
	// LoadTimeout is the per-request deadline. Defaults to DefaultLoadTimeout.
	LoadTimeout time.Duration
	// CleanupInterval is the compaction period. Zero selects
	// DefaultCleanupInterval, a negative value disables the task so the
	// owner can drive CompactCancelled itself.
	CleanupInterval time.Duration
	// MaxCancelledIDs bounds the cancellation registry between compactions.
	MaxCancelledIDs int
	// Handlers observe lifecycle events. Optional.
	Handlers *Handlers
	// Logger receives diagnostics. Defaults to a NopLogger.
	Logger logger.Logger
}

// Scheduler admits load requests in priority order under a concurrency
// bound, deduplicates resolution through a ClassCache, and drives every
// request to exactly one terminal outcome.
//
// All container state is guarded by one mutex. Loader dispatch, handle
// cancellation, instance construction and continuations are collected
// while the mutex is held and run after it is released, on the goroutine
// whose call produced them. Continuations may therefore call back into
// the Scheduler, and a blocked continuation holds up only its own caller.
type Scheduler struct {
	loader   Loader
	factory  InstanceFactory
	timers   TimerService
	handlers *Handlers
	log      logger.Logger

	mu            sync.Mutex
	maxConcurrent int
	loadTimeout   time.Duration
	active        []*LoadRequest
	pending       pendingQueue
	handles       map[RequestID]Handle
	timeouts      *TimeoutController
	seq           uint64
	compaction    TimerHandle
	closed        bool

	cache     *ClassCache
	cancelled *CancellationRegistry
	stats     StatsCollector
}

// NewScheduler creates a Scheduler and starts its compaction task.
func NewScheduler(opts *SchedulerOpts) (*Scheduler, error) {
	if opts == nil {
		return nil, errors.New("scheduler options are required")
	}
	if opts.Loader == nil {
		return nil, errors.New("scheduler requires a loader")
	}
	if opts.Factory == nil {
		return nil, errors.New("scheduler requires an instance factory")
	}
	if opts.Timers == nil {
		return nil, errors.New("scheduler requires a timer service")
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	handlers := &Handlers{}
	if opts.Handlers != nil {
		*handlers = *opts.Handlers
	}
	handlers.setDefault()

	s := &Scheduler{
		loader:        opts.Loader,
		factory:       opts.Factory,
		timers:        opts.Timers,
		handlers:      handlers,
		log:           l,
		maxConcurrent: opts.MaxConcurrentLoads,
		loadTimeout:   opts.LoadTimeout,
		handles:       make(map[RequestID]Handle),
		timeouts:      NewTimeoutController(opts.Timers),
		cache:         NewClassCache(),
		cancelled:     NewCancellationRegistry(opts.MaxCancelledIDs),
	}
	if s.maxConcurrent < 1 {
		s.maxConcurrent = DefaultMaxConcurrentLoads
	}
	if s.loadTimeout <= 0 {
		s.loadTimeout = DefaultLoadTimeout
	} else if s.loadTimeout < MinLoadTimeout {
		s.loadTimeout = MinLoadTimeout
	}

	interval := opts.CleanupInterval
	if interval == 0 {
		interval = DefaultCleanupInterval
	}
	if interval > 0 {
		s.compaction = s.timers.ScheduleRepeating(interval, func() { s.CompactCancelled() })
	}
	return s, nil
}

// Submit queues a load of ref and returns the new request id without
// waiting for the load. An invalid ref fails immediately: OnFailure is
// called synchronously with ErrInvalidIdentifier and uuid.Nil is returned.
// A ref already in the cache is constructed, and its continuation called,
// before Submit returns.
func (s *Scheduler) Submit(ref ClassRef, opts *SubmitOpts) RequestID {
	if opts == nil {
		opts = &SubmitOpts{}
	}
	if !ref.Valid() {
		s.log.Warning("Submit: invalid class identifier %q", ref)
		if opts.OnFailure != nil {
			opts.OnFailure(&LoadError{Ref: ref, Kind: ErrInvalidIdentifier})
		}
		return uuid.Nil
	}
	req := &LoadRequest{
		ID:        uuid.New(),
		Ref:       ref,
		Priority:  opts.Priority,
		CreatedAt: time.Now(),
		Placement: opts.Placement,
		onSuccess: opts.OnSuccess,
		onFailure: opts.OnFailure,
	}
	if !s.enqueue(req) {
		if opts.OnFailure != nil {
			opts.OnFailure(newLoadError(req, ErrNoScheduler, nil))
		}
		return uuid.Nil
	}
	return req.ID
}

// Preload loads ref into the cache without constructing an instance.
// Returns uuid.Nil when ref is invalid or already cached.
func (s *Scheduler) Preload(ref ClassRef, priority int) RequestID {
	if !ref.Valid() {
		s.log.Warning("Preload: invalid class identifier %q", ref)
		return uuid.Nil
	}
	if s.cache.Contains(ref) {
		s.log.Info("Preload: %s already cached", ref)
		return uuid.Nil
	}
	req := &LoadRequest{
		ID:        uuid.New(),
		Ref:       ref,
		Priority:  priority,
		CreatedAt: time.Now(),
		preload:   true,
		onFailure: func(err error) {
			s.log.Warning("Preload: failed to preload %s: %v", ref, err)
		},
	}
	if !s.enqueue(req) {
		return uuid.Nil
	}
	return req.ID
}

// enqueue registers a new request and either admits it or queues it.
// Returns false if the scheduler is closed.
func (s *Scheduler) enqueue(req *LoadRequest) bool {
	e := &effects{}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Error("Submit: scheduler closed, dropping request for %s", req.Ref)
		return false
	}
	s.seq++
	req.seq = s.seq
	s.stats.addTotal()
	s.log.Info("Submit: requesting load for %s (ID: %s, Priority: %d)", req.Ref, req.ID, req.Priority)
	if s.cache.Contains(req.Ref) || len(s.active) < s.maxConcurrent {
		s.admitLocked(req, e)
	} else {
		s.pending.Push(req)
		s.log.Info("Submit: request queued (Queue size: %d)", s.pending.Len())
	}
	s.mu.Unlock()
	s.run(e)
	return true
}

// Cancel cancels a live request. Returns false if id is unknown or the
// request already finished. Cancelled requests never call their continuations.
func (s *Scheduler) Cancel(id RequestID) bool {
	if id == uuid.Nil {
		return false
	}
	e := &effects{}
	s.mu.Lock()
	if req := s.findActiveLocked(id); req != nil {
		s.log.Info("Cancel: cancelling active request %s", id)
		if h, ok := s.handles[id]; ok {
			delete(s.handles, id)
			e.add(h.Cancel)
		}
		s.timeouts.Disarm(id)
		s.markCancelledLocked(req, e)
		s.removeActiveLocked(req)
		s.stats.addCancelled(1)
		s.processNextLocked(e)
	} else if req := s.pending.Remove(id); req != nil {
		s.log.Info("Cancel: cancelling pending request %s", id)
		s.markCancelledLocked(req, e)
		s.stats.addCancelled(1)
	} else {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	s.run(e)
	return true
}

// CancelAll cancels every active and pending request at once.
func (s *Scheduler) CancelAll() {
	e := &effects{}
	s.mu.Lock()
	s.cancelAllLocked(e)
	s.mu.Unlock()
	s.run(e)
}

func (s *Scheduler) cancelAllLocked(e *effects) {
	n := len(s.active) + s.pending.Len()
	s.log.Info("CancelAll: cancelling %d requests", n)
	ids := make([]RequestID, 0, n)
	for _, req := range s.active {
		if h, ok := s.handles[req.ID]; ok {
			e.add(h.Cancel)
		}
		ids = append(ids, req.ID)
	}
	for _, req := range s.pending.Items() {
		ids = append(ids, req.ID)
	}
	s.timeouts.DisarmAll()
	for _, req := range s.active {
		s.markCancelledLocked(req, e)
	}
	for _, req := range s.pending.Items() {
		s.markCancelledLocked(req, e)
	}
	s.cancelled.AddAll(ids)
	s.stats.addCancelled(n)
	s.active = nil
	s.pending.Reset()
	s.handles = make(map[RequestID]Handle)
}

// markCancelledLocked sets the cancelled flag, records the id and
// schedules the cancel event.
func (s *Scheduler) markCancelledLocked(req *LoadRequest, e *effects) {
	req.cancelled = true
	req.state = stateCancelled
	s.cancelled.Add(req.ID)
	id, ref := req.ID, req.Ref
	e.add(func() { s.handlers.CancelHandler(id, ref) })
}

// SetMaxConcurrentLoads changes the active-set capacity, clamped to at
// least 1. Raising it admits waiting requests immediately.
func (s *Scheduler) SetMaxConcurrentLoads(n int) {
	if n < 1 {
		n = 1
	}
	e := &effects{}
	s.mu.Lock()
	s.maxConcurrent = n
	s.log.Info("SetMaxConcurrentLoads: set to %d", n)
	s.processNextLocked(e)
	s.mu.Unlock()
	s.run(e)
}

// MaxConcurrentLoads returns the active-set capacity.
func (s *Scheduler) MaxConcurrentLoads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxConcurrent
}

// SetLoadTimeout changes the deadline for loads dispatched from now on,
// clamped to at least MinLoadTimeout. Deadlines already armed are kept.
func (s *Scheduler) SetLoadTimeout(d time.Duration) {
	if d < MinLoadTimeout {
		d = MinLoadTimeout
	}
	s.mu.Lock()
	s.loadTimeout = d
	s.mu.Unlock()
	s.log.Info("SetLoadTimeout: set to %.2f seconds", d.Seconds())
}

// LoadTimeout returns the deadline applied to new dispatches.
func (s *Scheduler) LoadTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTimeout
}

// processNextLocked admits waiting requests while there is capacity.
// Requests already marked cancelled are skipped without side effects.
func (s *Scheduler) processNextLocked(e *effects) {
	for len(s.active) < s.maxConcurrent && s.pending.Len() > 0 {
		req := s.pending.Pop()
		if req.cancelled || s.cancelled.Contains(req.ID) {
			s.log.Info("ProcessNext: skipping cancelled request %s", req.ID)
			continue
		}
		s.admitLocked(req, e)
	}
}

// admitLocked starts a request. A cached class is finished right away
// without occupying a slot; otherwise the request joins the active set,
// its deadline is armed and the loader dispatch is queued.
func (s *Scheduler) admitLocked(req *LoadRequest, e *effects) {
	if class, ok := s.cache.Lookup(req.Ref); ok {
		s.log.Info("StartLoading: found cached class for %s, creating instance immediately", req.Ref)
		req.state = stateCompleted
		e.add(func() { s.deliver(req, class) })
		return
	}
	req.state = stateActive
	s.active = append(s.active, req)
	if err := s.timeouts.Arm(req.ID, s.loadTimeout, func(gen uint64) { s.onTimeout(req, gen) }); err != nil {
		s.log.Warning("StartLoading: %s: %v", req.ID, err)
	}
	id, ref := req.ID, req.Ref
	e.add(func() { s.handlers.AdmitHandler(id, ref) })
	e.add(func() { s.dispatch(req, e) })
}

// dispatch hands a request to the loader. Runs outside the mutex. A
// completion that arrives before RequestLoad returns adds its work to e
// instead of running it on the completing goroutine.
func (s *Scheduler) dispatch(req *LoadRequest, e *effects) {
	s.log.Info("StartLoading: starting load for %s (ID: %s)", req.Ref, req.ID)
	s.mu.Lock()
	req.dispatching = e
	s.mu.Unlock()
	var (
		h   Handle
		err error
	)
	safeCall(s.log, "loader.RequestLoad", func(r interface{}) {
		h, err = nil, &panicError{value: r}
	}, func() {
		h, err = s.loader.RequestLoad(req.Ref, func(class Class, lerr error) {
			s.onLoaded(req, class, lerr)
		})
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	req.dispatching = nil
	if err != nil || h == nil {
		if req.state == stateActive {
			s.log.Warning("StartLoading: failed to create load handle for %s: %v", req.Ref, err)
			s.timeouts.Disarm(req.ID)
			s.removeActiveLocked(req)
			req.state = stateCompleted
			s.stats.addFailed()
			e.add(func() { s.fail(req, ErrHandleCreationFailed, err) })
			s.processNextLocked(e)
		}
		return
	}
	switch req.state {
	case stateActive:
		s.handles[req.ID] = h
	case stateCancelled:
		// cancelled or timed out before the handle existed
		e.add(h.Cancel)
	case stateCompleted:
		// the loader completed synchronously
		if req.retain {
			s.cache.Retain(h)
		}
	}
}

// onLoaded handles loader completion for req.
func (s *Scheduler) onLoaded(req *LoadRequest, class Class, err error) {
	s.mu.Lock()
	e, inDispatch := req.dispatching, req.dispatching != nil
	if !inDispatch {
		e = &effects{}
	}
	s.timeouts.Disarm(req.ID)
	h := s.handles[req.ID]
	delete(s.handles, req.ID)

	if req.state != stateActive || req.cancelled || s.cancelled.Contains(req.ID) {
		s.log.Info("OnClassLoaded: request %s was cancelled", req.ID)
		if req.state == stateActive {
			s.removeActiveLocked(req)
			req.state = stateCancelled
		}
		s.processNextLocked(e)
		s.mu.Unlock()
		if !inDispatch {
			s.run(e)
		}
		return
	}

	s.removeActiveLocked(req)
	req.state = stateCompleted
	if err != nil || class == nil {
		s.log.Warning("OnClassLoaded: failed to get loaded class for %s", req.Ref)
		s.stats.addFailed()
		e.add(func() { s.fail(req, ErrResolutionFailed, err) })
	} else {
		if s.cache.Insert(req.Ref, class) {
			s.log.Info("OnClassLoaded: added %s to cache", req.Ref)
			if h != nil {
				s.cache.Retain(h)
			} else {
				req.retain = true
			}
		}
		e.add(func() { s.deliver(req, class) })
	}
	s.processNextLocked(e)
	s.mu.Unlock()
	if !inDispatch {
		s.run(e)
	}
}

// onTimeout handles a fired deadline for req.
func (s *Scheduler) onTimeout(req *LoadRequest, gen uint64) {
	s.mu.Lock()
	if !s.timeouts.Fired(req.ID, gen) || req.state != stateActive {
		s.mu.Unlock()
		return
	}
	s.log.Warning("HandleLoadTimeout: request %s timed out", req.ID)
	e := &effects{}
	if h, ok := s.handles[req.ID]; ok {
		delete(s.handles, req.ID)
		e.add(h.Cancel)
	}
	e.add(func() { s.fail(req, ErrLoadTimeout, nil) })
	req.cancelled = true
	req.state = stateCancelled
	s.cancelled.Add(req.ID)
	s.removeActiveLocked(req)
	s.stats.addFailed()
	s.processNextLocked(e)
	s.mu.Unlock()
	s.run(e)
}

// deliver finishes a request whose class is resolved. Runs outside the mutex.
func (s *Scheduler) deliver(req *LoadRequest, class Class) {
	if req.preload {
		s.log.Info("PreloadClass: successfully preloaded and cached %s", req.Ref)
		s.stats.addCompleted()
		s.handlers.CompleteHandler(req.ID, req.Ref, nil)
		return
	}
	var (
		inst Instance
		err  error
	)
	safeCall(s.log, "factory.Create", func(r interface{}) {
		inst, err = nil, &panicError{value: r}
	}, func() {
		inst, err = s.factory.Create(class, req.Placement)
	})
	if err != nil || inst == nil {
		s.log.Warning("CreateInstance: failed to create instance for %s", req.Ref)
		s.stats.addFailed()
		s.fail(req, ErrConstructionFailed, err)
		return
	}
	s.log.Info("CreateInstance: instance created successfully for %s", req.Ref)
	s.stats.addCompleted()
	s.handlers.CompleteHandler(req.ID, req.Ref, inst)
	if req.onSuccess != nil {
		req.onSuccess(inst)
	}
}

// fail delivers a failure to the observers and the request. Runs outside the mutex.
func (s *Scheduler) fail(req *LoadRequest, kind, cause error) {
	err := newLoadError(req, kind, cause)
	s.handlers.FailHandler(req.ID, req.Ref, err)
	if req.onFailure != nil {
		req.onFailure(err)
	}
}

// effects is work collected under s.mu for one call. It is only touched
// with s.mu held.
type effects struct {
	fns []func()
}

func (e *effects) add(fn func()) {
	e.fns = append(e.fns, fn)
}

// run executes e in order on the calling goroutine. Work added while
// running, including completions that arrive during a dispatch, joins the
// same loop, so a chain of admissions never recurses.
func (s *Scheduler) run(e *effects) {
	s.mu.Lock()
	for len(e.fns) > 0 {
		fn := e.fns[0]
		e.fns[0] = nil
		e.fns = e.fns[1:]
		s.mu.Unlock()
		safeCall(s.log, "scheduler.run", nil, fn)
		s.mu.Lock()
	}
	s.mu.Unlock()
}

func (s *Scheduler) findActiveLocked(id RequestID) *LoadRequest {
	for _, req := range s.active {
		if req.ID == id {
			return req
		}
	}
	return nil
}

func (s *Scheduler) removeActiveLocked(req *LoadRequest) {
	for i, r := range s.active {
		if r == req {
			copy(s.active[i:], s.active[i+1:])
			s.active[len(s.active)-1] = nil
			s.active = s.active[:len(s.active)-1]
			return
		}
	}
}

// CompactCancelled trims the cancellation registry to its bound.
// Returns the number of ids dropped.
func (s *Scheduler) CompactCancelled() int {
	n := s.cancelled.Compact()
	if n > 0 {
		s.log.Info("CleanupCompletedRequests: cleaned up %d old cancelled request IDs", n)
	}
	return n
}

// Close cancels every request, stops the compaction task and clears the
// cache. Submissions after Close fail with ErrNoScheduler.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	e := &effects{}
	s.cancelAllLocked(e)
	if s.compaction != 0 {
		s.timers.Cancel(s.compaction)
		s.compaction = 0
	}
	s.mu.Unlock()
	s.run(e)
	s.cache.Clear()
	return nil
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
