package cli

import (
	"io"
	"os"

	"github.com/vburojevic/hostlog/internal/config"
	"github.com/vburojevic/hostlog/internal/logging"
	"go.uber.org/zap"
)

// CLI is the root command structure for hostlog
type CLI struct {
	// Global flags
	Format     string `short:"f" default:"${config_format}" enum:"ndjson,text" help:"Output format"`
	Verbose    int    `short:"v" type:"counter" help:"Increase verbosity (repeatable: -vvv enables debug diagnostics)"`
	Quiet      bool   `short:"q" help:"Hide relay status notices and informational diagnostics"`
	ConfigFile string `name:"config" type:"existingfile" help:"Load configuration from this file instead of searching"`

	// Commands
	Run        RunCmd        `cmd:"" default:"withargs" help:"Render a runner event stream and relay remote command logs"`
	Relay      RelayCmd      `cmd:"" help:"Relay one host's log in the foreground"`
	Console    ConsoleCmd    `cmd:"" help:"Serve a log file to relay clients (remote side)"`
	Markers    MarkersCmd    `cmd:"" help:"Inspect or clear relay markers"`
	Config     ConfigCmd     `cmd:"" help:"Show or manage configuration"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
	Doctor     DoctorCmd     `cmd:"" help:"Check configuration, relay markers and log server reachability"`
	Examples   ExamplesCmd   `cmd:"" help:"Show usage examples"`
	Completion CompletionCmd `cmd:"" help:"Generate shell completions"`
}

// Globals holds shared state for all commands
type Globals struct {
	Format    string
	Verbosity int
	Quiet     bool
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	Config    *config.Config
	Logger    *zap.Logger

	// ConfigFile is the file the configuration was loaded from, if any
	ConfigFile string
	// FlagsSet records flags given explicitly on the command line
	FlagsSet map[string]bool
}

// NewGlobalsWithConfig creates a new Globals instance with config fallbacks
func NewGlobalsWithConfig(cli *CLI, cfg *config.Config, flagsSet map[string]bool) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:    cli.Format,
		Verbosity: cli.Verbose,
		Quiet:     cli.Quiet || cfg.Quiet,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Config:    cfg,
		FlagsSet:  flagsSet,
	}

	// Apply config values if CLI flags weren't explicitly set
	if !g.FlagProvided("format") && cfg.Format != "" {
		g.Format = cfg.Format
	}
	if cli.Verbose == 0 {
		g.Verbosity = cfg.Verbosity
	}

	g.Logger = logging.New(logging.Options{Verbosity: g.Verbosity, Quiet: g.Quiet, Output: g.Stderr})
	return g
}

// FlagProvided reports whether a flag was set explicitly on the command line
func (g *Globals) FlagProvided(name string) bool {
	return g.FlagsSet[name]
}

// Log returns the diagnostic logger, never nil
func (g *Globals) Log() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

// Debug prints a debug diagnostic
func (g *Globals) Debug(format string, args ...interface{}) {
	g.Log().Sugar().Debugf(format, args...)
}

// VersionCmd shows version information
type VersionCmd struct{}

// Run executes the version command
func (v *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		return newWriter(globals).WriteMetadata(Version, Commit, BuildDate)
	}
	_, err := io.WriteString(globals.Stdout, "hostlog version "+Version+" ("+Commit+")\n")
	return err
}

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
