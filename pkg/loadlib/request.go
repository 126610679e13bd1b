package loadlib

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ClassRef is an unresolved reference to a loadable class, such as
// "file://views/menu.yaml" or "catalog://settings". It is resolved only
// on demand by a Loader.
type ClassRef string

// Valid reports whether the identifier is well formed: non-blank,
// valid UTF-8 and free of control characters.
func (r ClassRef) Valid() bool {
	s := string(r)
	if strings.TrimSpace(s) == "" || !utf8.ValidString(s) {
		return false
	}
	for _, c := range s {
		if unicode.IsControl(c) {
			return false
		}
	}
	return true
}

// String returns the identifier text.
func (r ClassRef) String() string {
	return string(r)
}

// RequestID uniquely identifies a load request. uuid.Nil is the empty id
// returned when no request was created.
type RequestID = uuid.UUID

// Placement holds the options handed to the InstanceFactory as-is.
type Placement struct {
	// RemoveParent removes the current top instance before showing the new one.
	RemoveParent bool `json:"removeParent,omitempty"`
	// DestroyParent destroys the current top instance before showing the new one.
	DestroyParent bool `json:"destroyParent,omitempty"`
	// ZOrder is the stacking order of the new instance.
	ZOrder int `json:"zOrder,omitempty"`
}

// SubmitOpts configures a load submission.
type SubmitOpts struct {
	// Priority orders pending requests; higher is more urgent.
	Priority int
	// Placement is passed through to the InstanceFactory.
	Placement Placement
	// OnSuccess receives the constructed instance.
	OnSuccess func(Instance)
	// OnFailure receives a *LoadError describing the failure.
	OnFailure func(error)
}

// LoadRequest is a deferred load tracked by the Scheduler.
// A request lives from submission until finalization; only its id
// outlives it, in the CancellationRegistry.
type LoadRequest struct {
	ID        RequestID
	Ref       ClassRef
	Priority  int
	CreatedAt time.Time
	Placement Placement

	onSuccess func(Instance)
	onFailure func(error)
	// seq is the submission order, used to break priority ties.
	seq       uint64
	cancelled bool
	state     requestState
	// retain is set when the class was cached before the loader returned
	// its handle; dispatch retains the handle once it arrives.
	retain bool
	// preload requests populate the cache without constructing an instance.
	preload bool
	// dispatching collects completion work while RequestLoad is running.
	dispatching *effects
}

// before reports whether r sorts ahead of o in the pending queue:
// higher priority first, then earlier submission.
func (r *LoadRequest) before(o *LoadRequest) bool {
	if r.Priority != o.Priority {
		return r.Priority > o.Priority
	}
	return r.seq < o.seq
}
