// Package daemon wires the asyncload components together and runs them
// until shutdown.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warpdl/asyncload/pkg/logger"
)

// Sentinel errors for the daemon runner.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running daemon.
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning is returned when Shutdown() is called on a stopped daemon.
	ErrNotRunning = errors.New("daemon is not running")

	// ErrShutdownTimeout is returned when shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// DefaultShutdownTimeout bounds Shutdown when Config leaves it unset.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds the configuration for the daemon runner.
type Config struct {
	// PIDFile, if set, receives the daemon's process id while it runs.
	PIDFile string

	// ShutdownTimeout is the maximum time Shutdown waits for Start to
	// return.
	ShutdownTimeout time.Duration
}

// Service is what the runner drives: a server that serves until its
// context is cancelled.
type Service interface {
	Start(ctx context.Context) error
}

// Runner manages the daemon lifecycle.
type Runner struct {
	config  *Config
	service Service
	cleanup func()
	log     logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a runner for service. cleanup, if non-nil, runs after the
// service stops.
func New(config *Config, service Service, cleanup func(), l logger.Logger) *Runner {
	if config == nil {
		config = &Config{}
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Runner{config: config, service: service, cleanup: cleanup, log: l}
}

// NewForComponents creates a runner serving c and closing it on exit.
func NewForComponents(config *Config, c *Components) *Runner {
	return New(config, c.Server, c.Close, c.log)
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config {
	return r.config
}

// Start runs the service and blocks until ctx is cancelled, Shutdown is
// called or the service fails.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.running = true
	done := r.done
	r.mu.Unlock()

	if r.config.PIDFile != "" {
		if err := WritePIDFile(r.config.PIDFile); err != nil {
			r.log.Warning("Could not write pid file: %v", err)
		}
	}
	r.log.Info("Daemon started")

	err := r.service.Start(ctx)

	r.log.Info("Shutting down daemon...")
	if r.cleanup != nil {
		r.cleanup()
	}
	if r.config.PIDFile != "" {
		if rerr := RemovePIDFile(r.config.PIDFile); rerr != nil {
			r.log.Warning("Could not remove pid file: %v", rerr)
		}
	}
	r.mu.Lock()
	r.running = false
	r.cancel()
	r.mu.Unlock()
	close(done)
	r.log.Info("Daemon stopped")
	return err
}

// Shutdown stops a running daemon and waits for Start to return.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(r.config.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

// IsRunning returns true if the daemon is currently running.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
