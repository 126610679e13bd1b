package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/warpdl/asyncload/internal/config"
	"github.com/warpdl/asyncload/internal/loader"
	"github.com/warpdl/asyncload/internal/metrics"
	"github.com/warpdl/asyncload/internal/secret"
	"github.com/warpdl/asyncload/internal/server"
	"github.com/warpdl/asyncload/internal/timer"
	"github.com/warpdl/asyncload/internal/view"
	"github.com/warpdl/asyncload/pkg/loadlib"
	"github.com/warpdl/asyncload/pkg/logger"
)

// BuildInfo is reported by system.getVersion.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildType string
}

// Components holds every initialized daemon component.
type Components struct {
	Config   *config.Config
	Timers   *timer.Service
	Router   *loader.Router
	Stack    *view.Stack
	Host     *loadlib.Host
	Metrics  *metrics.Metrics
	Notifier *server.RPCNotifier
	RPC      *server.RPCServer
	Server   *server.Server
	// Secret is the bearer token clients must present.
	Secret string

	log        logger.Logger
	compaction loadlib.TimerHandle
}

// Build initializes the components described by cfg. secretDir holds
// the token file used when the keyring is unavailable. On error, any
// partially initialized components are closed before returning.
func Build(cfg *config.Config, secretDir string, info BuildInfo, l logger.Logger) (c *Components, err error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	c = &Components{Config: cfg, log: l}
	defer func() {
		if err != nil {
			c.Close()
			c = nil
		}
	}()

	c.Secret, err = secret.Resolve(cfg.RPC.Secret, secretDir, l)
	if err != nil {
		l.Error("RPC secret initialization failed: %v", err)
		return c, err
	}

	c.Metrics = metrics.New()
	c.Timers = timer.New(context.Background(), l)
	c.Router, err = loader.Setup(&loader.SetupOpts{
		Root:           cfg.Loader.Root,
		ScriptRoot:     cfg.Loader.ScriptRoot,
		CatalogPath:    cfg.Loader.CatalogPath,
		Proxy:          cfg.Loader.Proxy,
		SSHKeyPath:     cfg.Loader.SSHKeyPath,
		KnownHostsPath: cfg.Loader.KnownHosts,
		Router: loader.RouterOpts{
			MaxInflight: cfg.Loader.MaxInflight,
			Observe:     c.Metrics.ObserveResolve,
			Logger:      l,
		},
	})
	if err != nil {
		l.Error("Loader initialization failed: %v", err)
		return c, err
	}
	l.Info("Loader schemes: %v", c.Router.SupportedSchemes())

	c.Stack = view.NewStack(l)
	c.Notifier = server.NewRPCNotifier(l)

	cleanup := cfg.Scheduler.CleanupInterval
	if cfg.Scheduler.CompactionCron != "" {
		cleanup = -1
	}
	c.Host = loadlib.NewHost(loadlib.SchedulerOpts{
		Loader:             c.Router,
		Factory:            c.Stack,
		Timers:             c.Timers,
		MaxConcurrentLoads: cfg.Scheduler.MaxConcurrentLoads,
		LoadTimeout:        cfg.Scheduler.LoadTimeout,
		CleanupInterval:    cleanup,
		MaxCancelledIDs:    cfg.Scheduler.MaxCancelledIDs,
		Handlers:           c.Notifier.Handlers(nil),
		Logger:             l,
	})
	sched, err := c.Host.Scheduler()
	if err != nil {
		l.Error("Scheduler initialization failed: %v", err)
		return c, err
	}
	if err = c.Metrics.RegisterScheduler(sched); err != nil {
		return c, err
	}
	if expr := cfg.Scheduler.CompactionCron; expr != "" {
		c.compaction, err = c.Timers.ScheduleCron(expr, func() {
			if n := sched.CompactCancelled(); n > 0 {
				l.Info("Compacted %d cancelled request ids", n)
			}
		})
		if err != nil {
			return c, fmt.Errorf("compaction schedule: %w", err)
		}
		next, _ := timer.NextCronOccurrence(expr, time.Now())
		l.Info("Cancelled id compaction scheduled by cron %q, next run %s", expr, next.Format("2006-01-02 15:04:05"))
	}

	c.RPC = server.NewRPCServer(&server.RPCConfig{
		Secret:    c.Secret,
		Version:   info.Version,
		Commit:    info.Commit,
		BuildType: info.BuildType,
		Views:     c.Stack,
	}, c.Host, c.Metrics.ObserveCall, l)
	c.Server = server.NewServer(server.Options{
		Listen:   cfg.RPC.Listen,
		Socket:   cfg.RPC.Socket,
		Gatherer: c.Metrics.Registry,
	}, c.RPC, c.Notifier, l)
	return c, nil
}

// Close releases the components in reverse order of initialization.
// The server must already be stopped.
func (c *Components) Close() {
	if c.compaction != 0 && c.Timers != nil {
		c.Timers.Cancel(c.compaction)
		c.compaction = 0
	}
	if c.RPC != nil {
		c.RPC.Close()
	}
	if c.Host != nil {
		_ = c.Host.Close()
	}
	if c.Stack != nil {
		if n := c.Stack.Clear(); n > 0 {
			c.log.Info("Released %d views", n)
		}
	}
	if c.Router != nil {
		if err := c.Router.Close(); err != nil {
			c.log.Warning("Loader close: %v", err)
		}
	}
	if c.Timers != nil {
		_ = c.Timers.Close()
	}
}
