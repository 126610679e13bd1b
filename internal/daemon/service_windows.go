//go:build windows

package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/warpdl/asyncload/pkg/logger"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
)

// ServiceName is the Windows service and event source name.
const ServiceName = "asyncload"

const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown

// lifecycle is the part of Runner the service handler drives.
type lifecycle interface {
	Start(ctx context.Context) error
	Shutdown() error
}

// ServiceHandler implements svc.Handler around a daemon runner.
type ServiceHandler struct {
	runner lifecycle
	log    logger.Logger
}

// NewServiceHandler creates a handler for r.
func NewServiceHandler(r lifecycle, l logger.Logger) *ServiceHandler {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &ServiceHandler{runner: r, log: l}
}

// Execute implements svc.Handler. Start arguments are ignored; the daemon
// reads its configuration file.
//
//	StartPending -> Running -> StopPending -> Stopped
func (h *ServiceHandler) Execute(_ []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}
	h.log.Info("asyncload service starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startErr := make(chan error, 1)
	go func() {
		startErr <- h.runner.Start(ctx)
	}()

	status <- svc.Status{State: svc.Running, Accepts: acceptedCommands}
	for {
		select {
		case err := <-startErr:
			// The daemon stopped on its own.
			if err != nil {
				h.log.Error("asyncload service failed: %v", err)
				status <- svc.Status{State: svc.Stopped}
				return false, 1
			}
			status <- svc.Status{State: svc.Stopped}
			return false, 0
		case req, ok := <-requests:
			if !ok {
				return false, 0
			}
			switch req.Cmd {
			case svc.Interrogate:
				status <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				return h.stop(status)
			}
		}
	}
}

func (h *ServiceHandler) stop(status chan<- svc.Status) (bool, uint32) {
	h.log.Info("asyncload service stopping")
	status <- svc.Status{State: svc.StopPending}
	if err := h.runner.Shutdown(); err != nil && !errors.Is(err, ErrNotRunning) {
		h.log.Error("Error during service shutdown: %v", err)
		status <- svc.Status{State: svc.Stopped}
		return false, 1
	}
	status <- svc.Status{State: svc.Stopped}
	return false, 0
}

// IsWindowsService reports whether the process was started by the service
// control manager.
func IsWindowsService() (bool, error) {
	return svc.IsWindowsService()
}

// RunService hands r to the service control manager and blocks until the
// service stops.
func RunService(r *Runner, l logger.Logger) error {
	return svc.Run(ServiceName, NewServiceHandler(r, l))
}

// EventLogger writes to the Windows event log.
type EventLogger struct {
	log *eventlog.Log
}

// NewEventLogger registers source if needed and opens it.
func NewEventLogger(source string) (*EventLogger, error) {
	// Fails harmlessly when the source already exists.
	_ = eventlog.InstallAsEventCreate(source, eventlog.Error|eventlog.Warning|eventlog.Info)
	elog, err := eventlog.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &EventLogger{log: elog}, nil
}

func (e *EventLogger) Info(format string, args ...interface{}) {
	_ = e.log.Info(1, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Warning(format string, args ...interface{}) {
	_ = e.log.Warning(2, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Error(format string, args ...interface{}) {
	_ = e.log.Error(3, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Close() error {
	return e.log.Close()
}

var _ logger.Logger = (*EventLogger)(nil)
