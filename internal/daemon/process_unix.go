//go:build !windows

package daemon

import (
	"os"
	"syscall"
)

// ProcessRunning reports whether a process with pid exists, using
// signal 0.
func ProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
