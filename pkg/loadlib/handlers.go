package loadlib

type (
	// AdmitHandlerFunc is called when a request enters the active set and
	// its load is dispatched to the loader.
	AdmitHandlerFunc func(id RequestID, ref ClassRef)
	// CompleteHandlerFunc is called when a request completes. inst is nil
	// for preload requests.
	CompleteHandlerFunc func(id RequestID, ref ClassRef, inst Instance)
	// FailHandlerFunc is called when a request fails, with the same error
	// delivered to its OnFailure continuation.
	FailHandlerFunc func(id RequestID, ref ClassRef, err error)
	// CancelHandlerFunc is called when a request is cancelled. Cancelled
	// requests never reach their own continuations.
	CancelHandlerFunc func(id RequestID, ref ClassRef)
)

// Handlers observe request lifecycle events, independently of the
// per-request continuations.
type Handlers struct {
	AdmitHandler    AdmitHandlerFunc
	CompleteHandler CompleteHandlerFunc
	FailHandler     FailHandlerFunc
	CancelHandler   CancelHandlerFunc
}

func (h *Handlers) setDefault() {
	if h.AdmitHandler == nil {
		h.AdmitHandler = func(id RequestID, ref ClassRef) {}
	}
	if h.CompleteHandler == nil {
		h.CompleteHandler = func(id RequestID, ref ClassRef, inst Instance) {}
	}
	if h.FailHandler == nil {
		h.FailHandler = func(id RequestID, ref ClassRef, err error) {}
	}
	if h.CancelHandler == nil {
		h.CancelHandler = func(id RequestID, ref ClassRef) {}
	}
}
