package loadlib

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier is reported when a malformed or empty identifier is submitted.
	ErrInvalidIdentifier = errors.New("invalid class identifier")
	// ErrHandleCreationFailed is reported when the loader could not start a load.
	ErrHandleCreationFailed = errors.New("failed to create load handle")
	// ErrLoadTimeout is reported when the load deadline elapsed before resolution.
	ErrLoadTimeout = errors.New("load timeout")
	// ErrResolutionFailed is reported when the loader completed without a usable class.
	ErrResolutionFailed = errors.New("load failed")
	// ErrConstructionFailed is reported when the instance factory returned no instance.
	ErrConstructionFailed = errors.New("construction failed")
	// ErrCancelled describes a cancelled request. It is never delivered to OnFailure.
	ErrCancelled = errors.New("load cancelled")
	// ErrNoScheduler is returned by a Host that has been closed.
	ErrNoScheduler = errors.New("scheduler is not available")
	// ErrTimerArmed is returned when arming a timeout for an id that already has one.
	ErrTimerArmed = errors.New("timeout already armed for request")
)

// LoadError is the failure delivered to a request's OnFailure continuation.
// Kind is one of the sentinel errors above; Cause is the collaborator's
// error, if any. errors.Is matches both.
type LoadError struct {
	ID    RequestID
	Ref   ClassRef
	Kind  error
	Cause error
}

func newLoadError(req *LoadRequest, kind, cause error) *LoadError {
	e := &LoadError{Kind: kind, Cause: cause}
	if req != nil {
		e.ID = req.ID
		e.Ref = req.Ref
	}
	return e
}

// Error implements the error interface.
// Format: "ref: kind: cause"
func (e *LoadError) Error() string {
	msg := e.Kind.Error()
	if e.Ref != "" {
		msg = fmt.Sprintf("%s: %s", e.Ref, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause.Error())
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *LoadError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
