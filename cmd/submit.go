package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/warpdl/asyncload/cmd/common"
	sharedcommon "github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/pkg/loadcli"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

var (
	priority      int
	zOrder        int
	removeParent  bool
	destroyParent bool
	detach        bool
	waitTimeout   time.Duration
	preloadWait   bool

	submitFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "priority, p",
			Usage:       "load priority, higher loads first",
			Destination: &priority,
		},
		cli.IntFlag{
			Name:        "z-order, z",
			Usage:       "stacking order of the new view",
			Destination: &zOrder,
		},
		cli.BoolFlag{
			Name:        "remove-parent, r",
			Usage:       "remove the current top view before showing the new one",
			Destination: &removeParent,
		},
		cli.BoolFlag{
			Name:        "destroy-parent",
			Usage:       "destroy the current top view before showing the new one",
			Destination: &destroyParent,
		},
		cli.BoolFlag{
			Name:        "detach, d",
			Usage:       "print the request id and return without waiting",
			Destination: &detach,
		},
		cli.DurationFlag{
			Name:        "wait-timeout",
			Usage:       "give up waiting after this long",
			Value:       2 * time.Minute,
			Destination: &waitTimeout,
		},
	}

	preloadFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "priority, p",
			Usage:       "load priority, higher loads first",
			Destination: &priority,
		},
		cli.BoolFlag{
			Name:        "wait, w",
			Usage:       "wait until every preload has settled",
			Destination: &preloadWait,
		},
		cli.DurationFlag{
			Name:        "wait-timeout",
			Usage:       "give up waiting after this long",
			Value:       2 * time.Minute,
			Destination: &waitTimeout,
		},
	}
)

func submit(ctx *cli.Context) error {
	ref := ctx.Args().First()
	if ref == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no reference provided"),
		)
	} else if ref == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	placement := loadlib.Placement{
		RemoveParent:  removeParent,
		DestroyParent: destroyParent,
		ZOrder:        zOrder,
	}
	client, err := newClient(ctx, !detach)
	if err != nil {
		return nil
	}
	defer client.Close()

	cctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	id, err := client.Submit(cctx, ref, priority, placement)
	if err != nil {
		common.PrintRuntimeErr(ctx, "submit", "submit", err)
		return nil
	}
	if detach {
		fmt.Println(id)
		return nil
	}

	p := mpb.New(mpb.WithWidth(40))
	bar := common.InitSpinner(p, ref)
	ev, err := client.Wait(cctx, id)
	if err != nil {
		bar.Abort(true)
		p.Wait()
		common.PrintRuntimeErr(ctx, "submit", "wait", err)
		fmt.Printf("Request %s may still be loading; check with \"%s status %s\"\n", id, ctx.App.HelpName, id)
		return nil
	}
	bar.SetTotal(1, true)
	p.Wait()
	printEvent(ev)
	return nil
}

func printEvent(ev *loadcli.Event) {
	switch ev.Method {
	case sharedcommon.NotifyLoadCompleted:
		if ev.View == nil {
			fmt.Printf("Loaded %s (cached)\n", ev.Ref)
			return
		}
		fmt.Printf(`
View`+"\t"+`: #%d
Class`+"\t"+`: %s
Title`+"\t"+`: %s
Z-Order`+"\t"+`: %d
Request`+"\t"+`: %s
`, ev.View.ID, ev.View.ClassName, ev.View.Title, ev.View.ZOrder, ev.ID)
	case sharedcommon.NotifyLoadFailed:
		fmt.Printf("Failed to load %s: %s\n", ev.Ref, ev.Error)
	case sharedcommon.NotifyLoadCancelled:
		fmt.Printf("Load of %s was cancelled\n", ev.Ref)
	}
}

func preload(ctx *cli.Context) error {
	refs := []string(ctx.Args())
	if len(refs) == 0 {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no reference provided"),
		)
	}
	client, err := newClient(ctx, preloadWait)
	if err != nil {
		return nil
	}
	defer client.Close()

	cctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	var ids []string
	for _, ref := range refs {
		res, err := client.Preload(cctx, ref, priority)
		if err != nil {
			common.PrintRuntimeErr(ctx, "preload", "preload", err)
			return nil
		}
		switch {
		case res.Cached:
			fmt.Printf("%s: already cached\n", ref)
		case res.ID == "":
			fmt.Printf("%s: invalid reference\n", ref)
		default:
			fmt.Printf("%s: queued as %s\n", ref, res.ID)
			ids = append(ids, res.ID)
		}
	}
	if !preloadWait {
		return nil
	}
	for _, id := range ids {
		ev, err := client.Wait(cctx, id)
		if err != nil {
			common.PrintRuntimeErr(ctx, "preload", "wait", err)
			return nil
		}
		switch ev.Method {
		case sharedcommon.NotifyLoadCompleted:
			fmt.Printf("%s: cached\n", ev.Ref)
		default:
			printEvent(ev)
		}
	}
	return nil
}
