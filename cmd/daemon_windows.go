//go:build windows

package cmd

import (
	"github.com/warpdl/asyncload/internal/daemon"
	"github.com/warpdl/asyncload/pkg/logger"
)

// serviceLogger reports whether the daemon was started by the service
// control manager and, if so, adds the Windows event log to l.
func serviceLogger(l logger.Logger) (logger.Logger, bool) {
	isService, err := daemon.IsWindowsService()
	if err != nil || !isService {
		return l, false
	}
	el, err := daemon.NewEventLogger(daemon.ServiceName)
	if err != nil {
		l.Warning("event log unavailable: %v", err)
		return l, true
	}
	return logger.NewMultiLogger(l, el), true
}

func runService(r *daemon.Runner, l logger.Logger) error {
	return daemon.RunService(r, l)
}
