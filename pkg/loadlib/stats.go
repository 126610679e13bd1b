package loadlib

import "sync/atomic"

// Stats is a snapshot of the scheduler's monotonic counters.
type Stats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// StatsCollector holds the request counters. Counters only grow; nothing
// but a process restart resets them.
type StatsCollector struct {
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

func (c *StatsCollector) addTotal()          { c.total.Add(1) }
func (c *StatsCollector) addCompleted()      { c.completed.Add(1) }
func (c *StatsCollector) addFailed()         { c.failed.Add(1) }
func (c *StatsCollector) addCancelled(n int) { c.cancelled.Add(int64(n)) }

// Snapshot returns the current counter values.
func (c *StatsCollector) Snapshot() Stats {
	return Stats{
		Total:     c.total.Load(),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
		Cancelled: c.cancelled.Load(),
	}
}
