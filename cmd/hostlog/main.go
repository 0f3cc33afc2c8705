package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/vburojevic/hostlog/internal/cli"
	"github.com/vburojevic/hostlog/internal/config"
)

func main() {
	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}
	configFile := config.ConfigFile()

	var c cli.CLI

	// Apply config defaults before parsing
	// These will be overridden by CLI flags if specified
	vars := kong.Vars{
		"config_format": cfg.Format,
	}

	ctx := kong.Parse(&c,
		kong.Name("hostlog"),
		kong.Description("hostlog: render task runner progress and relay live logs from remote hosts\n\nSTART HERE: ansible-playbook ... | hostlog run"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	// An explicit --config replaces whatever the search found
	if c.ConfigFile != "" {
		explicit, err := config.LoadFromFile(c.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error [INVALID_CONFIG]: %v\n", err)
			os.Exit(2)
		}
		cfg, configFile = explicit, c.ConfigFile
	}

	// Record which flags were explicitly provided so commands can distinguish
	// CLI overrides from config defaults.
	flagsSet := map[string]bool{}
	for _, p := range ctx.Path {
		if p.Flag != nil {
			flagsSet[p.Flag.Name] = true
		}
	}
	globals := cli.NewGlobalsWithConfig(&c, cfg, flagsSet)
	globals.ConfigFile = configFile
	defer func() { _ = globals.Logger.Sync() }()

	if err := ctx.Run(globals); err != nil {
		code := 1
		var cliErr *cli.CLIError
		if errors.As(err, &cliErr) {
			code = cliErr.ExitCode()
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		_ = globals.Logger.Sync()
		os.Exit(code)
	}
}
