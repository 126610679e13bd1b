//go:build windows

package cmd

import (
	"fmt"
	"os"
)

// killDaemon terminates the daemon process. Windows has no SIGTERM for
// console processes, so the daemon does not get to clean up.
func killDaemon(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process not found: %w", err)
	}
	if err := process.Kill(); err != nil {
		return fmt.Errorf("failed to terminate process: %w", err)
	}
	return nil
}
