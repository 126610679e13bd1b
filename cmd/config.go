package cmd

import (
	"fmt"

	"github.com/urfave/cli"
	"github.com/warpdl/asyncload/cmd/common"
	"github.com/warpdl/asyncload/internal/config"
)

func configFile() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

func configInit(ctx *cli.Context) error {
	path, err := configFile()
	if err != nil {
		common.PrintRuntimeErr(ctx, "config", "path", err)
		return nil
	}
	created, err := config.WriteDefault(path)
	if err != nil {
		common.PrintRuntimeErr(ctx, "config", "write", err)
		return nil
	}
	if !created {
		fmt.Printf("Configuration already exists at %s\n", path)
		return nil
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}

func configShow(ctx *cli.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		common.PrintRuntimeErr(ctx, "config", "load", err)
		return nil
	}
	if cfg.RPC.Secret != "" {
		cfg.RPC.Secret = "<redacted>"
	}
	data, err := cfg.Marshal()
	if err != nil {
		common.PrintRuntimeErr(ctx, "config", "marshal", err)
		return nil
	}
	if cfg.Path != "" {
		fmt.Printf("# %s\n", cfg.Path)
	}
	fmt.Print(string(data))
	return nil
}
