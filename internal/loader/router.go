// Package loader resolves class identifiers into view classes. A Router
// dispatches each identifier by scheme to a Backend and runs the
// resolution on its own goroutine, bounded by a semaphore.
package loader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warpdl/asyncload/pkg/loadlib"
	"github.com/warpdl/asyncload/pkg/logger"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxInflight  = 64
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 200 * time.Millisecond
)

// Backend resolves identifiers of one scheme.
type Backend interface {
	Resolve(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error)

// Resolve calls f.
func (f BackendFunc) Resolve(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error) {
	return f(ctx, ref)
}

// ObserveFunc is called after every resolution with its scheme, duration
// and result. Cancelled resolutions are not observed.
type ObserveFunc func(scheme string, d time.Duration, err error)

// RouterOpts configures a Router.
type RouterOpts struct {
	// MaxInflight bounds concurrent resolutions. Defaults to DefaultMaxInflight.
	MaxInflight int64
	// MaxRetries is the number of extra attempts for transient errors.
	// Negative disables retries.
	MaxRetries int
	// RetryBackoff is the delay before the first retry; it doubles per attempt.
	RetryBackoff time.Duration
	// Observe receives resolution timings. Optional.
	Observe ObserveFunc
	Logger  logger.Logger
}

// Router implements loadlib.Loader by scheme dispatch.
type Router struct {
	mu       sync.RWMutex
	backends map[string]Backend

	sem     *semaphore.Weighted
	retries int
	backoff time.Duration
	observe ObserveFunc
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

var _ loadlib.Loader = (*Router)(nil)

// NewRouter creates a Router with no backends registered.
func NewRouter(opts *RouterOpts) *Router {
	if opts == nil {
		opts = &RouterOpts{}
	}
	max := opts.MaxInflight
	if max <= 0 {
		max = DefaultMaxInflight
	}
	retries := opts.MaxRetries
	if retries == 0 {
		retries = DefaultMaxRetries
	} else if retries < 0 {
		retries = 0
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		backends: make(map[string]Backend),
		sem:      semaphore.NewWeighted(max),
		retries:  retries,
		backoff:  backoff,
		observe:  opts.Observe,
		log:      l,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds or replaces the backend for scheme.
func (r *Router) Register(scheme string, b Backend) {
	r.mu.Lock()
	r.backends[strings.ToLower(scheme)] = b
	r.mu.Unlock()
}

// SupportedSchemes returns the sorted registered schemes.
func (r *Router) SupportedSchemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemes := make([]string, 0, len(r.backends))
	for s := range r.backends {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// SplitRef returns the lowercase scheme and the remainder of ref.
func SplitRef(ref loadlib.ClassRef) (scheme, rest string, ok bool) {
	scheme, rest, ok = strings.Cut(string(ref), "://")
	if !ok || scheme == "" {
		return "", "", false
	}
	return strings.ToLower(scheme), rest, true
}

func (r *Router) backend(ref loadlib.ClassRef) (string, Backend, error) {
	scheme, _, ok := SplitRef(ref)
	if !ok {
		return "", nil, fmt.Errorf("%w: no scheme in %q", ErrUnsupportedScheme, ref)
	}
	r.mu.RLock()
	b, found := r.backends[scheme]
	r.mu.RUnlock()
	if !found {
		return "", nil, fmt.Errorf("%w %q, supported: %s",
			ErrUnsupportedScheme, scheme, strings.Join(r.SupportedSchemes(), ", "))
	}
	return scheme, b, nil
}

// RequestLoad starts resolving ref in the background. It fails without
// starting anything if the scheme is unknown or MaxInflight resolutions
// are already running. onComplete runs on the resolution goroutine
// unless the returned handle was cancelled first.
func (r *Router) RequestLoad(ref loadlib.ClassRef, onComplete func(loadlib.Class, error)) (loadlib.Handle, error) {
	if r.closed.Load() {
		return nil, ErrRouterClosed
	}
	scheme, b, err := r.backend(ref)
	if err != nil {
		return nil, err
	}
	if !r.sem.TryAcquire(1) {
		return nil, ErrTooManyLoads
	}
	ctx, cancel := context.WithCancel(r.ctx)
	h := &handle{cancel: cancel}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		defer cancel()

		start := time.Now()
		var (
			class loadlib.Class
			rerr  error
		)
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("PANIC [loader %s]: %v\n%s", scheme, p, debug.Stack())
					rerr = NewPermanentError(scheme, "resolve", fmt.Errorf("panic: %v", p))
				}
			}()
			class, rerr = r.resolve(ctx, scheme, b, ref)
		}()
		if !h.finish() {
			r.log.Info("loader: %s cancelled", ref)
			return
		}
		if r.observe != nil {
			r.observe(scheme, time.Since(start), rerr)
		}
		if rerr != nil {
			r.log.Warning("loader: failed to resolve %s: %v", ref, rerr)
		}
		onComplete(class, rerr)
	}()
	return h, nil
}

// resolve calls the backend, retrying transient errors with exponential
// backoff while ctx is alive.
func (r *Router) resolve(ctx context.Context, scheme string, b Backend, ref loadlib.ClassRef) (loadlib.Class, error) {
	delay := r.backoff
	for attempt := 0; ; attempt++ {
		class, err := b.Resolve(ctx, ref)
		if err == nil {
			return class, nil
		}
		if attempt >= r.retries || !IsTransient(err) || ctx.Err() != nil {
			return nil, err
		}
		r.log.Warning("loader: %s attempt %d failed, retrying in %s: %v", ref, attempt+1, delay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Close cancels every running resolution and waits for the goroutines
// to exit. Later RequestLoad calls fail with ErrRouterClosed.
func (r *Router) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	var errs []error
	r.mu.RLock()
	for _, b := range r.backends {
		if c, ok := b.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	r.mu.RUnlock()
	return errors.Join(errs...)
}

const (
	handleActive int32 = iota
	handleDone
	handleCancelled
)

// handle is the loadlib.Handle of one resolution.
type handle struct {
	state  atomic.Int32
	cancel context.CancelFunc
}

// Cancel stops the resolution and suppresses its completion.
func (h *handle) Cancel() {
	if h.state.CompareAndSwap(handleActive, handleCancelled) {
		h.cancel()
	}
}

// Active reports whether the resolution is still running.
func (h *handle) Active() bool {
	return h.state.Load() == handleActive
}

// finish marks the resolution done. Returns false if it was cancelled.
func (h *handle) finish() bool {
	return h.state.CompareAndSwap(handleActive, handleDone)
}
