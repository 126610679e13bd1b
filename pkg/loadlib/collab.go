package loadlib

import "time"

// Class is a resolved, constructible type produced by a Loader.
// The scheduler never inspects it; it is only cached and handed to the InstanceFactory.
type Class any

// Instance is a usable object constructed from a Class by the InstanceFactory.
type Instance any

// Handle is a cancelable token representing in-flight loader work.
type Handle interface {
	// Cancel asks the loader to abandon the work. Best effort: the
	// underlying resolution may already be past the point of no return.
	Cancel()
	// Active reports whether the handle still holds loader resources.
	Active() bool
}

// Loader resolves identifiers into classes asynchronously.
//
// RequestLoad must not block on the resolution itself. onComplete fires
// at most once per successful dispatch (a nil error return), and exactly
// once unless the handle is cancelled first; a cancelled handle may never
// complete. It may fire on any goroutine, including synchronously from
// within RequestLoad.
type Loader interface {
	RequestLoad(ref ClassRef, onComplete func(Class, error)) (Handle, error)
}

// InstanceFactory constructs a usable instance from a resolved class.
// A nil instance or a non-nil error is a construction failure.
type InstanceFactory interface {
	Create(class Class, placement Placement) (Instance, error)
}

// TimerHandle identifies a timer scheduled through a TimerService.
// The zero value never identifies a live timer.
type TimerHandle uint64

// TimerService schedules deferred callbacks.
//
// Callbacks must never run synchronously from within ScheduleOnce or
// ScheduleRepeating. A callback already dispatched when Cancel is called
// may still run; callers tolerate such late fires.
type TimerService interface {
	ScheduleOnce(after time.Duration, fn func()) TimerHandle
	ScheduleRepeating(interval time.Duration, fn func()) TimerHandle
	Cancel(h TimerHandle)
}
