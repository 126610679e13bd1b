package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/warpdl/asyncload/cmd/common"
	sharedcommon "github.com/warpdl/asyncload/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var buildArgs BuildArgs

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "config",
		Usage:       "path to the configuration file",
		EnvVar:      sharedcommon.ConfigPathEnv,
		Destination: &configPath,
	},
	cli.StringFlag{
		Name:        "daemon-uri, u",
		Usage:       "daemon address: unix:///path/to.sock, pipe://name or tcp://host:port (default: from config)",
		EnvVar:      sharedcommon.DaemonURIEnv,
		Destination: &daemonURI,
	},
	cli.StringFlag{
		Name:        "token",
		Usage:       "RPC bearer token (default: keyring or token file)",
		EnvVar:      sharedcommon.SecretEnv,
		Destination: &rpcToken,
	},
}

func Execute(args []string, bArgs BuildArgs) error {
	buildArgs = bArgs
	app := cli.App{
		Name:                  "asyncload",
		HelpName:              "asyncload",
		Usage:                 "An asynchronous widget class loader.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "asyncload [global options] <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Flags:                 globalFlags,
		Commands: []cli.Command{
			{
				Name:               "daemon",
				Usage:              "run the load daemon in the foreground",
				Action:             runDaemon,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        DaemonDescription,
				Flags:              daemonFlags,
			},
			{
				Name:   "stop",
				Usage:  "stop a running daemon",
				Action: stopDaemon,
				Flags:  stopFlags,
			},
			{
				Name:                   "submit",
				Aliases:                []string{"s"},
				Usage:                  "load a widget class and build a view",
				UsageText:              "<ref>",
				Action:                 submit,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            SubmitDescription,
				Flags:                  submitFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:               "preload",
				Aliases:            []string{"p"},
				Usage:              "warm the class cache",
				UsageText:          "<ref> [ref...]",
				Action:             preload,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        PreloadDescription,
				Flags:              preloadFlags,
			},
			{
				Name:               "cancel",
				Aliases:            []string{"c"},
				Usage:              "cancel loads",
				UsageText:          "<id> [id...] | --all",
				Action:             cancelLoads,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        CancelDescription,
				Flags:              cancelFlags,
			},
			{
				Name:               "status",
				Usage:              "show the status of a request",
				UsageText:          "<id>",
				Action:             status,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StatusDescription,
			},
			{
				Name:      "loading",
				Usage:     "report whether a reference is being loaded",
				UsageText: "<ref>",
				Action:    loading,
			},
			{
				Name:               "stats",
				Usage:              "show scheduler statistics",
				Action:             stats,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        StatsDescription,
			},
			{
				Name:               "limits",
				Usage:              "change concurrency and timeout limits",
				Action:             limits,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        LimitsDescription,
				Flags:              limitsFlags,
			},
			{
				Name:        "cache",
				Usage:       "inspect or clear the class cache",
				Description: CacheDescription,
				Subcommands: []cli.Command{
					{
						Name:      "check",
						Usage:     "report whether a reference is cached",
						UsageText: "<ref>",
						Action:    cacheCheck,
					},
					{
						Name:   "stats",
						Usage:  "show cache usage",
						Action: cacheStats,
					},
					{
						Name:   "clear",
						Usage:  "empty the cache",
						Action: cacheClear,
					},
				},
			},
			{
				Name:        "view",
				Usage:       "list or remove views on the daemon's stack",
				Description: ViewDescription,
				Subcommands: []cli.Command{
					{
						Name:   "list",
						Usage:  "show the views from bottom to top",
						Action: viewList,
					},
					{
						Name:         "remove",
						Aliases:      []string{"rm"},
						Usage:        "take a view off the stack",
						UsageText:    "<id>",
						Action:       viewRemove,
						OnUsageError: common.UsageErrorCallback,
					},
				},
			},
			{
				Name:   "debug",
				Usage:  "dump the scheduler state",
				Action: debugDump,
			},
			{
				Name:        "config",
				Usage:       "create or show the configuration",
				Description: ConfigDescription,
				Subcommands: []cli.Command{
					{
						Name:   "init",
						Usage:  "write a default configuration file",
						Action: configInit,
					},
					{
						Name:   "show",
						Usage:  "print the effective configuration",
						Action: configShow,
					},
				},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of asyncload",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
