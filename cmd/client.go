package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/asyncload/cmd/common"
	"github.com/warpdl/asyncload/internal/config"
	"github.com/warpdl/asyncload/internal/secret"
	"github.com/warpdl/asyncload/pkg/loadcli"
)

var (
	configPath string
	daemonURI  string
	rpcToken   string
)

// callTimeout bounds a single RPC made by a command.
const callTimeout = 10 * time.Second

// resolveTarget returns the daemon URI and token for client commands.
// Flags win; otherwise both come from the configuration and the stored
// token.
func resolveTarget() (uri, token string, err error) {
	uri, token = daemonURI, rpcToken
	if uri != "" && token != "" {
		return uri, token, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", "", err
	}
	if uri == "" {
		if cfg.RPC.Socket != "" {
			uri = loadcli.SocketURI(cfg.RPC.Socket)
		} else {
			uri = loadcli.SchemeTCP + "://" + cfg.RPC.Listen
		}
	}
	if token == "" {
		token = cfg.RPC.Secret
	}
	if token == "" {
		dir, derr := config.Dir()
		if derr != nil {
			return "", "", derr
		}
		token, err = secret.Lookup(dir)
		if errors.Is(err, secret.ErrNotFound) {
			return "", "", errors.New("no RPC token found; start the daemon once or pass --token")
		}
		if err != nil {
			return "", "", err
		}
	}
	return uri, token, nil
}

// newClient connects to the daemon. push selects a WebSocket session,
// which is needed to wait for load notifications.
func newClient(ctx *cli.Context, push bool) (*loadcli.Client, error) {
	uri, token, err := resolveTarget()
	if err != nil {
		common.PrintRuntimeErr(ctx, ctx.Command.Name, "resolve_daemon", err)
		return nil, err
	}
	opts := &loadcli.Options{URI: uri, Token: token}
	var client *loadcli.Client
	if push {
		client, err = loadcli.Dial(context.Background(), opts)
	} else {
		client, err = loadcli.DialHTTP(opts)
	}
	if err != nil {
		common.PrintRuntimeErr(ctx, ctx.Command.Name, "new_client", err)
		return nil, err
	}
	return client, nil
}

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func printHeading(title string) {
	fmt.Printf("\n%s\n", common.Beaut(title, 40))
}
