package cli

import (
	"fmt"

	"github.com/vburojevic/hostlog/internal/config"
)

// ConfigCmd shows or manages configuration
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"withargs" help:"Show current configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show configuration file path"`
	Generate ConfigGenerateCmd `cmd:"" help:"Generate sample configuration file"`
}

// ConfigShowCmd shows current configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if globals.Format == "ndjson" {
		return newWriter(globals).WriteRaw(map[string]interface{}{
			"type":      "config",
			"format":    cfg.Format,
			"verbosity": cfg.Verbosity,
			"quiet":     cfg.Quiet,
			"relay":     cfg.Relay,
			"display":   cfg.Display,
			"console":   cfg.Console,
			"file":      globals.ConfigFile,
		})
	}

	// Text output
	out := globals.Stdout
	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "  format:    %s\n", cfg.Format)
	fmt.Fprintf(out, "  verbosity: %d\n", cfg.Verbosity)
	fmt.Fprintf(out, "  quiet:     %v\n", cfg.Quiet)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Relay:")
	fmt.Fprintf(out, "  port:             %d\n", cfg.Relay.Port)
	fmt.Fprintf(out, "  retry_interval:   %s\n", cfg.Relay.RetryInterval)
	fmt.Fprintf(out, "  dial_timeout:     %s\n", cfg.Relay.DialTimeout)
	fmt.Fprintf(out, "  chunk_size:       %d\n", cfg.Relay.ChunkSize)
	fmt.Fprintf(out, "  marker_store:     %s\n", cfg.Relay.MarkerStore)
	fmt.Fprintf(out, "  marker_dir:       %s\n", cfg.Relay.MarkerDir)
	fmt.Fprintf(out, "  actions:          %v\n", cfg.Relay.Actions)
	fmt.Fprintf(out, "  address_var:      %s\n", cfg.Relay.AddressVar)
	fmt.Fprintf(out, "  address_fallback: %v\n", cfg.Relay.AddressFallback)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Display:")
	fmt.Fprintf(out, "  args:    %v\n", cfg.Display.Args)
	fmt.Fprintf(out, "  skipped: %v\n", cfg.Display.Skipped)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Console:")
	fmt.Fprintf(out, "  listen:        %s\n", cfg.Console.Listen)
	fmt.Fprintf(out, "  poll_interval: %s\n", cfg.Console.PollInterval)

	if globals.ConfigFile != "" {
		fmt.Fprintln(out, "")
		fmt.Fprintf(out, "Loaded from: %s\n", globals.ConfigFile)
	}

	return nil
}

// ConfigPathCmd shows config file path
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := globals.ConfigFile

	if globals.Format == "ndjson" {
		return newWriter(globals).WriteRaw(map[string]interface{}{
			"type": "config_path",
			"path": path,
		})
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "")
		fmt.Fprintln(globals.Stdout, "Create one at:")
		fmt.Fprintln(globals.Stdout, "  ./.hostlog.yaml")
		fmt.Fprintln(globals.Stdout, "  ~/.hostlog.yaml")
		fmt.Fprintln(globals.Stdout, "  ~/.config/hostlog/config.yaml")
	} else {
		fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	}

	return nil
}

// ConfigGenerateCmd generates a sample configuration file
type ConfigGenerateCmd struct{}

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	_, err := fmt.Fprint(globals.Stdout, config.Sample)
	return err
}
