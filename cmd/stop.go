package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"github.com/warpdl/asyncload/internal/daemon"
)

func stopDaemon(ctx *cli.Context) error {
	path, err := defaultPIDFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error locating PID file: %v\n", err)
		return nil
	}
	pid, err := daemon.ReadPIDFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Daemon is not running (PID file not found)")
			return nil
		}
		fmt.Fprintf(os.Stderr, "Error reading PID file: %v\n", err)
		return nil
	}
	if !daemon.ProcessRunning(pid) {
		fmt.Printf("Daemon is not running (stale PID %d)\n", pid)
		_ = daemon.RemovePIDFile(path)
		return nil
	}

	fmt.Printf("Stopping daemon (PID %d)...\n", pid)
	if err := killDaemon(pid); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping daemon: %v\n", err)
		return nil
	}
	// The daemon removes its PID file on exit.
	fmt.Println("Daemon stopped successfully")
	return nil
}
