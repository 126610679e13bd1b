package loadlib

import (
	"fmt"
	"strings"
	"time"
)

// RequestStatus reports where a request currently is.
type RequestStatus struct {
	Active    bool `json:"active"`
	Pending   bool `json:"pending"`
	Cancelled bool `json:"cancelled"`
}

// RequestStatus returns the status of id. The second result is false if
// the id is not tracked anywhere, which includes completed requests.
// A cancelled id reports only Cancelled.
func (s *Scheduler) RequestStatus(id RequestID) (RequestStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled.Contains(id) {
		return RequestStatus{Cancelled: true}, true
	}
	if s.findActiveLocked(id) != nil {
		return RequestStatus{Active: true}, true
	}
	if s.pending.Find(id) != nil {
		return RequestStatus{Pending: true}, true
	}
	return RequestStatus{}, false
}

// IsLoading reports whether any live request targets ref.
func (s *Scheduler) IsLoading(ref ClassRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.active {
		if req.Ref == ref && !req.cancelled {
			return true
		}
	}
	for _, req := range s.pending.Items() {
		if req.Ref == ref && !req.cancelled {
			return true
		}
	}
	return false
}

// ActiveCount returns the number of requests being loaded.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// PendingCount returns the number of requests waiting for a slot.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// CancelledCount returns the size of the cancellation registry.
func (s *Scheduler) CancelledCount() int {
	return s.cancelled.Len()
}

// Stats returns a snapshot of the outcome counters.
func (s *Scheduler) Stats() Stats {
	return s.stats.Snapshot()
}

// IsCached reports whether ref has a resolved class in the cache.
func (s *Scheduler) IsCached(ref ClassRef) bool {
	return s.cache.Contains(ref)
}

// CacheStats returns the cache entry count and approximate size.
func (s *Scheduler) CacheStats() CacheStats {
	return s.cache.Stats()
}

// ClearCache empties the class cache and releases retained handles.
// Loads in flight are not affected.
func (s *Scheduler) ClearCache() int {
	n := s.cache.Clear()
	s.log.Info("ClearCache: widget class cache cleared (%d entries)", n)
	return n
}

// DebugRequest describes one live request in a DebugInfo.
type DebugRequest struct {
	ID       RequestID     `json:"id"`
	Ref      ClassRef      `json:"ref"`
	Priority int           `json:"priority"`
	Age      time.Duration `json:"age"`
}

// DebugInfo is a point-in-time dump of the scheduler.
type DebugInfo struct {
	MaxConcurrentLoads int            `json:"maxConcurrentLoads"`
	LoadTimeout        time.Duration  `json:"loadTimeout"`
	Active             []DebugRequest `json:"active"`
	Pending            []DebugRequest `json:"pending"`
	CancelledIDs       int            `json:"cancelledIds"`
	ArmedTimeouts      int            `json:"armedTimeouts"`
	Cache              CacheStats     `json:"cache"`
	Stats              Stats          `json:"stats"`
}

// DebugDump captures the scheduler state and writes it to the logger.
func (s *Scheduler) DebugDump() DebugInfo {
	now := time.Now()
	s.mu.Lock()
	info := DebugInfo{
		MaxConcurrentLoads: s.maxConcurrent,
		LoadTimeout:        s.loadTimeout,
		Active:             make([]DebugRequest, 0, len(s.active)),
		Pending:            make([]DebugRequest, 0, s.pending.Len()),
		ArmedTimeouts:      s.timeouts.Len(),
	}
	for _, req := range s.active {
		info.Active = append(info.Active, debugRequest(req, now))
	}
	for _, req := range s.pending.Items() {
		info.Pending = append(info.Pending, debugRequest(req, now))
	}
	s.mu.Unlock()
	info.CancelledIDs = s.cancelled.Len()
	info.Cache = s.cache.Stats()
	info.Stats = s.stats.Snapshot()
	s.log.Info("%s", info.String())
	return info
}

func debugRequest(req *LoadRequest, now time.Time) DebugRequest {
	return DebugRequest{
		ID:       req.ID,
		Ref:      req.Ref,
		Priority: req.Priority,
		Age:      now.Sub(req.CreatedAt),
	}
}

// String renders the dump as a multi-line report.
func (d DebugInfo) String() string {
	var b strings.Builder
	b.WriteString("=== Async Load Scheduler Debug Info ===\n")
	fmt.Fprintf(&b, "Max Concurrent Loads: %d\n", d.MaxConcurrentLoads)
	fmt.Fprintf(&b, "Load Timeout: %.2f seconds\n", d.LoadTimeout.Seconds())
	fmt.Fprintf(&b, "Active Loads: %d\n", len(d.Active))
	for _, r := range d.Active {
		fmt.Fprintf(&b, "  - %s (ID: %s, Priority: %d, Age: %.2fs)\n", r.Ref, r.ID, r.Priority, r.Age.Seconds())
	}
	fmt.Fprintf(&b, "Pending Loads: %d\n", len(d.Pending))
	for _, r := range d.Pending {
		fmt.Fprintf(&b, "  - %s (ID: %s, Priority: %d, Age: %.2fs)\n", r.Ref, r.ID, r.Priority, r.Age.Seconds())
	}
	fmt.Fprintf(&b, "Cancelled IDs: %d\n", d.CancelledIDs)
	fmt.Fprintf(&b, "Armed Timeouts: %d\n", d.ArmedTimeouts)
	fmt.Fprintf(&b, "Cached Classes: %d (~%d bytes)\n", d.Cache.Count, d.Cache.ApproxBytes)
	fmt.Fprintf(&b, "Stats: total=%d completed=%d failed=%d cancelled=%d\n",
		d.Stats.Total, d.Stats.Completed, d.Stats.Failed, d.Stats.Cancelled)
	b.WriteString("========================================")
	return b.String()
}
