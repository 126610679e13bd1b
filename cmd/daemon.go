package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli"
	"github.com/warpdl/asyncload/cmd/common"
	sharedcommon "github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/internal/config"
	"github.com/warpdl/asyncload/internal/daemon"
	"github.com/warpdl/asyncload/pkg/logger"
)

var (
	listenAddr string
	socketPath string
	logLevel   string
	pidFile    string

	daemonFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "listen, l",
			Usage:       "TCP address to serve on (overrides rpc.listen)",
			EnvVar:      sharedcommon.ListenEnv,
			Destination: &listenAddr,
		},
		cli.StringFlag{
			Name:        "socket",
			Usage:       "unix socket to serve on (overrides rpc.socket)",
			EnvVar:      sharedcommon.SocketPathEnv,
			Destination: &socketPath,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "minimum log level: info, warning or error (overrides log_level)",
			Destination: &logLevel,
		},
		pidFileFlag,
	}

	stopFlags = []cli.Flag{pidFileFlag}

	pidFileFlag = cli.StringFlag{
		Name:        "pid-file",
		Usage:       "pid file location (default: <config dir>/daemon.pid)",
		Destination: &pidFile,
	}
)

// newDaemonLogger writes to stderr, filtered by the configured level.
// ASYNCLOAD_DEBUG=1 forces info level.
func newDaemonLogger(level string) (logger.Logger, error) {
	if os.Getenv(sharedcommon.DebugEnv) == "1" {
		level = "info"
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	base := logger.NewStandardLogger(log.New(os.Stderr, "asyncload: ", log.LstdFlags))
	return logger.NewLevelLogger(base, lvl), nil
}

func defaultPIDFile() (string, error) {
	if pidFile != "" {
		return pidFile, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, daemon.PIDFileName), nil
}

func runDaemon(ctx *cli.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "load_config", err)
		return nil
	}
	if listenAddr != "" {
		cfg.RPC.Listen = listenAddr
	}
	if socketPath != "" {
		cfg.RPC.Socket = socketPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	l, err := newDaemonLogger(cfg.LogLevel)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "logger", err)
		return nil
	}
	l, asService := serviceLogger(l)
	defer l.Close()

	pid, err := defaultPIDFile()
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "pid_file", err)
		return nil
	}
	if old, rerr := daemon.ReadPIDFile(pid); rerr == nil && daemon.ProcessRunning(old) {
		common.PrintRuntimeErr(ctx, "daemon", "start", fmt.Errorf("%w (PID %d)", daemon.ErrAlreadyRunning, old))
		return nil
	}
	secretDir, err := config.Dir()
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "config_dir", err)
		return nil
	}

	c, err := daemon.Build(cfg, secretDir, daemon.BuildInfo{
		Version:   buildArgs.Version,
		Commit:    buildArgs.Commit,
		BuildType: buildArgs.BuildType,
	}, l)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "build", err)
		return nil
	}
	r := daemon.NewForComponents(&daemon.Config{PIDFile: pid}, c)
	if asService {
		return runService(r, l)
	}

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Start(sctx)
}
