package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/hostlog/internal/console"
	"go.uber.org/zap"
)

// ConsoleCmd serves a log file to relay clients. It runs on the remote host
// next to the command whose output it streams.
type ConsoleCmd struct {
	File         string `required:"" type:"path" help:"Log file to stream"`
	Listen       string `help:"Listen address (default from config)"`
	PollInterval string `help:"How often to check the file for new data (default from config)"`
}

// Run executes the console command
func (c *ConsoleCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := globals.Config.Console
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}
	if c.PollInterval != "" {
		cfg.PollInterval = c.PollInterval
	}
	interval := cfg.PollIntervalDuration()
	if interval == 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", fmt.Sprintf("invalid poll interval %q", cfg.PollInterval), "Use a positive duration such as 250ms")
	}
	if _, err := os.Stat(c.File); err != nil {
		return outputErrorCommon(globals, "FILE_NOT_FOUND", err.Error())
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return outputErrorCommon(globals, "LISTEN_FAILED", err.Error(), hintForListen(err))
	}
	return c.serve(ctx, globals, ln, interval)
}

func (c *ConsoleCmd) serve(ctx context.Context, globals *Globals, ln net.Listener, interval time.Duration) error {
	log := globals.Log()
	if !globals.Quiet {
		_ = newEmitter(globals, "").Display(fmt.Sprintf("serving %s on %s", c.File, ln.Addr()))
	}
	srv := &console.Server{
		Path:         c.File,
		PollInterval: interval,
		Clock:        clock.New(),
		Logger:       log,
	}
	if err := srv.Serve(ctx, ln); err != nil {
		return outputErrorCommon(globals, "SERVE_FAILED", err.Error())
	}
	log.Debug("log server stopped", zap.String("file", c.File))
	return nil
}
