package loadlib

import "sync"

// DefaultMaxCancelledIDs bounds the CancellationRegistry between compactions.
const DefaultMaxCancelledIDs = 100

// CancellationRegistry remembers cancelled request ids after the requests
// themselves are gone, so status queries keep answering correctly. Ids are
// kept in insertion order; Compact drops the oldest ones.
type CancellationRegistry struct {
	mu    sync.RWMutex
	max   int
	ids   map[RequestID]struct{}
	order []RequestID
}

// NewCancellationRegistry creates a registry bounded to max ids.
// A non-positive max selects DefaultMaxCancelledIDs.
func NewCancellationRegistry(max int) *CancellationRegistry {
	if max <= 0 {
		max = DefaultMaxCancelledIDs
	}
	return &CancellationRegistry{
		max: max,
		ids: make(map[RequestID]struct{}),
	}
}

// Add records id. Re-adding a known id keeps its original position.
func (r *CancellationRegistry) Add(id RequestID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(id)
}

// AddAll records every id in order.
func (r *CancellationRegistry) AddAll(ids []RequestID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.addLocked(id)
	}
}

func (r *CancellationRegistry) addLocked(id RequestID) {
	if _, ok := r.ids[id]; ok {
		return
	}
	r.ids[id] = struct{}{}
	r.order = append(r.order, id)
}

// Contains reports whether id was cancelled and is still remembered.
func (r *CancellationRegistry) Contains(id RequestID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of remembered ids.
func (r *CancellationRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Max returns the configured bound.
func (r *CancellationRegistry) Max() int {
	return r.max
}

// Compact drops the oldest ids once the registry exceeds its bound,
// keeping the newest max/2. Returns the number of ids removed.
func (r *CancellationRegistry) Compact() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) <= r.max {
		return 0
	}
	remove := len(r.order) - r.max/2
	for _, id := range r.order[:remove] {
		delete(r.ids, id)
	}
	kept := make([]RequestID, len(r.order)-remove)
	copy(kept, r.order[remove:])
	r.order = kept
	return remove
}
