//go:build windows

package daemon

import "os"

// ProcessRunning reports whether a process with pid exists.
func ProcessRunning(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
