package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"
	"github.com/warpdl/asyncload/cmd/common"
)

var (
	cancelAll     bool
	maxConcurrent int
	timeoutSecs   float64

	cancelFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "all, a",
			Usage:       "cancel every pending and active load",
			Destination: &cancelAll,
		},
	}

	limitsFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "max-concurrent, m",
			Usage:       "maximum number of loads in flight",
			Destination: &maxConcurrent,
		},
		cli.Float64Flag{
			Name:        "timeout, t",
			Usage:       "per-load timeout in seconds",
			Destination: &timeoutSecs,
		},
	}
)

func cancelLoads(ctx *cli.Context) error {
	ids := []string(ctx.Args())
	if !cancelAll && len(ids) == 0 {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no request id provided"),
		)
	}
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	if cancelAll {
		counts, err := client.CancelAll(cctx)
		if err != nil {
			common.PrintRuntimeErr(ctx, "cancel", "cancel_all", err)
			return nil
		}
		fmt.Printf("Cancelled all loads (%d ids recorded)\n", counts.CancelledIDs)
		return nil
	}
	for _, id := range ids {
		ok, err := client.Cancel(cctx, id)
		if err != nil {
			common.PrintRuntimeErr(ctx, "cancel", "cancel", err)
			return nil
		}
		if ok {
			fmt.Printf("%s: cancelled\n", id)
		} else {
			fmt.Printf("%s: nothing to cancel\n", id)
		}
	}
	return nil
}

func status(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no request id provided"),
		)
	}
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	st, err := client.Status(cctx, id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "status", "status", err)
		return nil
	}
	state := "unknown (finished or never submitted)"
	switch {
	case st.Cancelled:
		state = "cancelled"
	case st.Active:
		state = "active"
	case st.Pending:
		state = "pending"
	}
	fmt.Printf("%s: %s\n", st.ID, state)
	return nil
}

func loading(ctx *cli.Context) error {
	ref := ctx.Args().First()
	if ref == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no reference provided"),
		)
	}
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	ok, err := client.IsLoading(cctx, ref)
	if err != nil {
		common.PrintRuntimeErr(ctx, "loading", "is_loading", err)
		return nil
	}
	fmt.Printf("%s: loading=%t\n", ref, ok)
	return nil
}

func stats(ctx *cli.Context) error {
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	counts, err := client.Counts(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "stats", "counts", err)
		return nil
	}
	st, err := client.Stats(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "stats", "stats", err)
		return nil
	}
	cs, err := client.CacheStats(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "stats", "cache_stats", err)
		return nil
	}
	printHeading("Scheduler")
	fmt.Printf(`Active`+"\t\t"+`: %d
Pending`+"\t\t"+`: %d
Cancelled IDs`+"\t"+`: %d
Max Concurrent`+"\t"+`: %d
Load Timeout`+"\t"+`: %.2fs
`, counts.Active, counts.Pending, counts.CancelledIDs, counts.MaxConcurrentLoads, counts.LoadTimeoutSeconds)
	printHeading("Outcomes")
	fmt.Printf(`Submitted`+"\t"+`: %d
Completed`+"\t"+`: %d
Failed`+"\t\t"+`: %d
Cancelled`+"\t"+`: %d
`, st.Total, st.Completed, st.Failed, st.Cancelled)
	printHeading("Cache")
	fmt.Printf(`Classes`+"\t\t"+`: %d
Approx Size`+"\t"+`: %d bytes
`, cs.Count, cs.ApproxBytes)
	return nil
}

func limits(ctx *cli.Context) error {
	if maxConcurrent == 0 && timeoutSecs == 0 {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("nothing to change; pass --max-concurrent or --timeout"),
		)
	}
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	if maxConcurrent != 0 {
		if _, err := client.SetMaxConcurrentLoads(cctx, maxConcurrent); err != nil {
			common.PrintRuntimeErr(ctx, "limits", "set_max_concurrent", err)
			return nil
		}
	}
	if timeoutSecs != 0 {
		if _, err := client.SetLoadTimeout(cctx, timeoutSecs); err != nil {
			common.PrintRuntimeErr(ctx, "limits", "set_timeout", err)
			return nil
		}
	}
	counts, err := client.Counts(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "limits", "counts", err)
		return nil
	}
	fmt.Printf("Max concurrent loads: %d, load timeout: %.2fs\n", counts.MaxConcurrentLoads, counts.LoadTimeoutSeconds)
	return nil
}

func debugDump(ctx *cli.Context) error {
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	info, err := client.DebugDump(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "debug", "dump", err)
		return nil
	}
	fmt.Println(info.String())
	return nil
}
