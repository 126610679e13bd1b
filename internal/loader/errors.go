package loader

import (
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"

	"golang.org/x/crypto/ssh"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported identifier scheme")
	ErrTooManyLoads      = errors.New("too many loads in flight")
	ErrRouterClosed      = errors.New("loader router is closed")
	ErrNotFound          = errors.New("class not found")
	ErrInvalidPath       = errors.New("invalid class path")
)

// Error is a structured error from a loader backend.
// Use errors.As to extract and inspect it.
type Error struct {
	// Scheme identifies the backend that produced the error (e.g., "file", "ftp").
	Scheme string
	// Op is the operation that failed (e.g., "read", "connect", "parse").
	Op string
	// Cause is the underlying error.
	Cause error
	// transient indicates whether the error may be retried.
	transient bool
}

// Error implements the error interface.
// Format: "scheme op: cause"
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s", e.Scheme, e.Op, e.Cause.Error())
	}
	return fmt.Sprintf("%s %s", e.Scheme, e.Op)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsTransient returns true if the error may go away on retry.
func (e *Error) IsTransient() bool {
	return e.transient
}

// NewPermanentError creates an Error that must not be retried.
func NewPermanentError(scheme, op string, cause error) *Error {
	return &Error{Scheme: scheme, Op: op, Cause: cause}
}

// NewTransientError creates an Error that may be retried.
func NewTransientError(scheme, op string, cause error) *Error {
	return &Error{Scheme: scheme, Op: op, Cause: cause, transient: true}
}

// IsTransient reports whether err is a transient loader Error.
func IsTransient(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.IsTransient()
}

// classify wraps err for scheme/op. Missing files, FTP 5xx replies and
// SSH exit errors are permanent; network errors and FTP 4xx replies are
// transient. Anything else is permanent.
func classify(scheme, op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, os.ErrNotExist) {
		return NewPermanentError(scheme, op, fmt.Errorf("%w: %w", ErrNotFound, err))
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if tpErr.Code >= 400 && tpErr.Code < 500 {
			return NewTransientError(scheme, op, err)
		}
		return NewPermanentError(scheme, op, err)
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return NewPermanentError(scheme, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewTransientError(scheme, op, err)
	}
	return NewPermanentError(scheme, op, err)
}
