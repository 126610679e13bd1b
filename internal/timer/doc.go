// Package timer provides the daemon's TimerService. A single goroutine
// keeps a min-heap of timers sorted by due time and sleeps with a
// 60-second max-sleep-cap, so wall-clock steps (NTP, DST, system sleep)
// are picked up within a minute.
//
// Callbacks always run on their own goroutine, never on the caller's, and
// a callback may still run shortly after its timer was cancelled.
package timer
