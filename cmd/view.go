package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli"
	"github.com/warpdl/asyncload/cmd/common"
)

func viewList(ctx *cli.Context) error {
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	views, err := client.ListViews(cctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "view", "list", err)
		return nil
	}
	if len(views) == 0 {
		fmt.Println("No views on the stack")
		return nil
	}
	printHeading("Views (bottom to top)")
	for _, v := range views {
		fmt.Printf("#%d\t%s\tz=%d\t%s\n", v.ID, v.ClassName, v.ZOrder, v.Title)
	}
	return nil
}

func viewRemove(ctx *cli.Context) error {
	arg := ctx.Args().First()
	if arg == "" {
		return common.PrintErrWithCmdHelp(
			ctx,
			errors.New("no view id provided"),
		)
	}
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return common.PrintErrWithCmdHelp(
			ctx,
			fmt.Errorf("invalid view id %q", arg),
		)
	}
	client, err := newClient(ctx, false)
	if err != nil {
		return nil
	}
	defer client.Close()
	cctx, done := callContext()
	defer done()

	ok, err := client.RemoveView(cctx, id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "view", "remove", err)
		return nil
	}
	if !ok {
		fmt.Printf("No view #%d on the stack\n", id)
		return nil
	}
	fmt.Printf("Removed view #%d\n", id)
	return nil
}
