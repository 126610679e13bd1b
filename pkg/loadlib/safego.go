package loadlib

import (
	"runtime/debug"

	"github.com/warpdl/asyncload/pkg/logger"
)

// safeCall runs fn with panic recovery. If l is non-nil, panics are
// logged with stack traces. If onPanic is non-nil, it's called with the
// recovered value.
func safeCall(l logger.Logger, context string, onPanic func(r interface{}), fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if l != nil {
				l.Error("PANIC [%s]: %v\n%s", context, r, debug.Stack())
			}
			if onPanic != nil {
				onPanic(r)
			}
		}
	}()
	fn()
}
