package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/vburojevic/dbgwire/internal/cli"
	"github.com/vburojevic/dbgwire/internal/config"
)

const quickStart = `dbgwire - scripted test client for the pydevd wire protocol

Quick start:
  dbgwire config generate > dbgwire.yaml   Write a config file
  dbgwire check case.yaml                  Validate a scenario script
  dbgwire run --debugger pydevd.py case.yaml

For help:
  dbgwire --help                           All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing
	// These will be overridden by CLI flags if specified
	vars := kong.Vars{
		"config_format": cfg.Format,
	}

	ctx := kong.Parse(&c,
		kong.Name("dbgwire"),
		kong.Description("dbgwire: drive a debugger over its wire protocol and verify the debugged process"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	// Create globals with config fallbacks
	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(cli.ExitStatus(err))
	}
}
