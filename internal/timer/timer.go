package timer

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"github.com/warpdl/asyncload/pkg/loadlib"
	"github.com/warpdl/asyncload/pkg/logger"
)

const maxSleepCap = 60 * time.Second

// ErrInvalidCron is returned by ScheduleCron for an unparsable expression.
var ErrInvalidCron = errors.New("invalid cron expression")

// entry is one scheduled callback. interval > 0 or cron != "" makes it
// recurring.
type entry struct {
	handle   loadlib.TimerHandle
	at       time.Time
	interval time.Duration
	cron     string
	fn       func()
}

// op is a request to the service goroutine: add when e is non-nil,
// otherwise remove handle. A single channel keeps a Cancel ordered after
// the Schedule that produced its handle.
type op struct {
	e      *entry
	handle loadlib.TimerHandle
}

// Service implements loadlib.TimerService on top of a single goroutine.
type Service struct {
	ops    chan op
	ctx    context.Context
	cancel context.CancelFunc
	log    logger.Logger
	next   atomic.Uint64
	wg     sync.WaitGroup
	now    func() time.Time
}

var _ loadlib.TimerService = (*Service)(nil)

// New creates and starts a Service. The goroutine exits when ctx is
// cancelled or Close is called.
func New(ctx context.Context, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Service{
		ops:    make(chan op, 64),
		ctx:    ctx,
		cancel: cancel,
		log:    l,
		now:    time.Now,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// ScheduleOnce runs fn once after the given delay.
func (s *Service) ScheduleOnce(after time.Duration, fn func()) loadlib.TimerHandle {
	return s.add(&entry{at: s.now().Add(after), fn: fn})
}

// ScheduleRepeating runs fn every interval until cancelled.
func (s *Service) ScheduleRepeating(interval time.Duration, fn func()) loadlib.TimerHandle {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return s.add(&entry{at: s.now().Add(interval), interval: interval, fn: fn})
}

// ScheduleCron runs fn at every occurrence of the cron expression.
func (s *Service) ScheduleCron(expr string, fn func()) (loadlib.TimerHandle, error) {
	next, err := NextCronOccurrence(expr, s.now())
	if err != nil {
		return 0, err
	}
	return s.add(&entry{at: next, cron: expr, fn: fn}), nil
}

// Cancel stops the timer. Unknown or already fired handles are ignored.
func (s *Service) Cancel(h loadlib.TimerHandle) {
	if h == 0 {
		return
	}
	select {
	case s.ops <- op{handle: h}:
	case <-s.ctx.Done():
	}
}

// Close stops the service goroutine and waits for it to exit. Pending
// timers are dropped.
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Service) add(e *entry) loadlib.TimerHandle {
	e.handle = loadlib.TimerHandle(s.next.Add(1))
	select {
	case s.ops <- op{e: e}:
	case <-s.ctx.Done():
	}
	return e.handle
}

// run is the service goroutine. It owns the heap and sleeps until the
// earliest due time, capped at maxSleepCap.
func (s *Service) run() {
	defer s.wg.Done()
	h := &timerHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			// nothing scheduled, block on ops
			return nil
		}
		dur := (*h)[0].at.Sub(s.now())
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()
	for {
		select {
		case <-s.ctx.Done():
			return

		case o := <-s.ops:
			if o.e != nil {
				heapPush(h, o.e)
			} else {
				heapRemove(h, o.handle)
			}
			timerCh = resetTimer()

		case <-timerCh:
			now := s.now()
			for h.Len() > 0 && !(*h)[0].at.After(now) {
				e := heapPop(h)
				s.fire(e)
				if next, ok := s.reschedule(e, now); ok {
					e.at = next
					heapPush(h, e)
				}
			}
			timerCh = resetTimer()
		}
	}
}

// reschedule computes the next due time of a recurring entry.
func (s *Service) reschedule(e *entry, now time.Time) (time.Time, bool) {
	switch {
	case e.interval > 0:
		next := e.at.Add(e.interval)
		if next.Before(now) {
			// skip ticks missed while the process was asleep
			next = now.Add(e.interval)
		}
		return next, true
	case e.cron != "":
		next, err := NextCronOccurrence(e.cron, now)
		if err != nil {
			s.log.Error("timer: dropping cron %q: %v", e.cron, err)
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

func (s *Service) fire(e *entry) {
	safeGo(s.log, fmt.Sprintf("timer %d", e.handle), e.fn)
}

// safeGo runs fn in a goroutine with panic recovery. Panics are logged
// with stack traces.
func safeGo(l logger.Logger, context string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.Error("PANIC [%s]: %v\n%s", context, r, debug.Stack())
			}
		}()
		fn()
	}()
}

// NextCronOccurrence returns the next time the cron expression fires
// strictly after start.
func NextCronOccurrence(expr string, start time.Time) (time.Time, error) {
	if err := ValidateCron(expr); err != nil {
		return time.Time{}, err
	}
	return gronx.NextTickAfter(expr, start, false)
}

// ValidateCron checks a 5-field cron expression (minute hour
// day-of-month month day-of-week).
func ValidateCron(expr string) error {
	// gronx.IsValid also accepts a 6-field form with seconds
	if len(strings.Fields(expr)) != 5 || !gronx.IsValid(expr) {
		return fmt.Errorf("%w %q, expected 5-field format (minute hour day-of-month month day-of-week)", ErrInvalidCron, expr)
	}
	return nil
}

// HasOccurrenceWithinYear reports whether expr fires at least once within
// a year of from. Invalid expressions report false.
func HasOccurrenceWithinYear(expr string, from time.Time) bool {
	next, err := NextCronOccurrence(expr, from)
	if err != nil {
		return false
	}
	return next.Before(from.Add(365 * 24 * time.Hour))
}
