package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"
	"github.com/warpdl/asyncload/cmd/common"
)

func cacheCheck(ctx *cli.Context) error {
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

	ok, err := client.IsCached(cctx, ref)
	if err != nil {
		common.PrintRuntimeErr(ctx, "cache", "is_cached", err)
		return nil
	}
	fmt.Printf("%s: cached=%t\n", ref, ok)
	return nil
}

func cacheStats(ctx *cli.Context) error {
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	cs, err := client.CacheStats(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "cache", "stats", err)
		return nil
	}
	fmt.Printf("Cached classes: %d (~%d bytes)\n", cs.Count, cs.ApproxBytes)
	return nil
}

func cacheClear(ctx *cli.Context) error {
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	n, err := client.ClearCache(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "cache", "clear", err)
		return nil
	}
	fmt.Printf("Removed %d cached classes\n", n)
	return nil
}
