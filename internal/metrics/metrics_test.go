package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

type fakeSource struct {
	stats   loadlib.Stats
	active  int
	pending int
}

func (f *fakeSource) Stats() loadlib.Stats    { return f.stats }
func (f *fakeSource) ActiveCount() int        { return f.active }
func (f *fakeSource) PendingCount() int       { return f.pending }
func (f *fakeSource) CancelledCount() int     { return 4 }
func (f *fakeSource) MaxConcurrentLoads() int { return 3 }
func (f *fakeSource) CacheStats() loadlib.CacheStats {
	return loadlib.CacheStats{Count: 2, ApproxBytes: 128}
}

func TestSchedulerCollector(t *testing.T) {
	src := &fakeSource{
		stats:   loadlib.Stats{Total: 10, Completed: 6, Failed: 1, Cancelled: 2},
		active:  3,
		pending: 5,
	}
	err := testutil.CollectAndCompare(NewSchedulerCollector(src), strings.NewReader(`
# HELP asyncload_scheduler_active_loads Requests currently being loaded.
# TYPE asyncload_scheduler_active_loads gauge
asyncload_scheduler_active_loads 3
# HELP asyncload_scheduler_pending_loads Requests waiting for a load slot.
# TYPE asyncload_scheduler_pending_loads gauge
asyncload_scheduler_pending_loads 5
# HELP asyncload_scheduler_requests_total Requests accepted by the scheduler, by outcome.
# TYPE asyncload_scheduler_requests_total counter
asyncload_scheduler_requests_total{outcome="cancelled"} 2
asyncload_scheduler_requests_total{outcome="completed"} 6
asyncload_scheduler_requests_total{outcome="failed"} 1
asyncload_scheduler_requests_total{outcome="total"} 10
`), "asyncload_scheduler_active_loads", "asyncload_scheduler_pending_loads", "asyncload_scheduler_requests_total")
	if err != nil {
		t.Fatal(err)
	}
}

func TestSchedulerCollectorCount(t *testing.T) {
	if n := testutil.CollectAndCount(NewSchedulerCollector(&fakeSource{})); n != 10 {
		t.Errorf("CollectAndCount = %d, want 10", n)
	}
}

func TestRegisterSchedulerTwice(t *testing.T) {
	m := New()
	if err := m.RegisterScheduler(&fakeSource{}); err != nil {
		t.Fatalf("RegisterScheduler: %v", err)
	}
	if err := m.RegisterScheduler(&fakeSource{}); err == nil {
		t.Fatal("expected error on second registration")
	}
}

func TestObserveResolve(t *testing.T) {
	m := New()
	m.ObserveResolve("file", 20*time.Millisecond, nil)
	m.ObserveResolve("file", time.Second, errors.New("boom"))
	m.ObserveResolve("http", time.Second, errors.New("boom"))
	if got := testutil.ToFloat64(m.resolveErrors.WithLabelValues("file")); got != 1 {
		t.Errorf("file errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.resolveDuration); got != 2 {
		t.Errorf("histogram series = %d, want 2", got)
	}
}

func TestObserveCall(t *testing.T) {
	m := New()
	m.ObserveCall("load.submit", nil)
	m.ObserveCall("load.submit", nil)
	m.ObserveCall("load.submit", errors.New("x"))
	if got := testutil.ToFloat64(m.rpcCalls.WithLabelValues("load.submit", "ok")); got != 2 {
		t.Errorf("ok calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rpcCalls.WithLabelValues("load.submit", "error")); got != 1 {
		t.Errorf("error calls = %v, want 1", got)
	}
}

func TestSchedulerSatisfiesSource(t *testing.T) {
	m := New()
	s, err := loadlib.NewScheduler(&loadlib.SchedulerOpts{
		Loader: loaderFunc(func(loadlib.ClassRef, func(loadlib.Class, error)) (loadlib.Handle, error) {
			return nil, errors.New("no")
		}),
		Factory:         factoryFunc(func(loadlib.Class, loadlib.Placement) (loadlib.Instance, error) { return nil, nil }),
		Timers:          nopTimers{},
		CleanupInterval: -1,
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Close()
	if err := m.RegisterScheduler(s); err != nil {
		t.Fatalf("RegisterScheduler: %v", err)
	}
	if _, err := m.Registry.Gather(); err != nil {
		t.Fatalf("Gather: %v", err)
	}
}

type loaderFunc func(loadlib.ClassRef, func(loadlib.Class, error)) (loadlib.Handle, error)

func (f loaderFunc) RequestLoad(ref loadlib.ClassRef, cb func(loadlib.Class, error)) (loadlib.Handle, error) {
	return f(ref, cb)
}

type factoryFunc func(loadlib.Class, loadlib.Placement) (loadlib.Instance, error)

func (f factoryFunc) Create(c loadlib.Class, p loadlib.Placement) (loadlib.Instance, error) {
	return f(c, p)
}

type nopTimers struct{}

func (nopTimers) ScheduleOnce(time.Duration, func()) loadlib.TimerHandle      { return 1 }
func (nopTimers) ScheduleRepeating(time.Duration, func()) loadlib.TimerHandle { return 2 }
func (nopTimers) Cancel(loadlib.TimerHandle)                                  {}
