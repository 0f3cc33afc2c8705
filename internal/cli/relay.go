package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/vburojevic/hostlog/internal/relay"
	"go.uber.org/zap"
)

// RelayCmd relays a single host's log in the foreground, without markers.
// Useful to check that a host's log server is reachable.
type RelayCmd struct {
	Host    string `arg:"" help:"Host name used to tag relayed lines"`
	Address string `arg:"" help:"Address of the host's log server"`
	Port    int    `help:"Port of the log server (default from config)"`

	RelayFilterFlags `embed:""`
}

// Run executes the relay command
func (c *RelayCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, globals)
}

func (c *RelayCmd) run(ctx context.Context, globals *Globals) error {
	cfg := globals.Config.Relay
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "port out of range")
	}

	runID := uuid.NewString()
	sink, err := c.sink(newEmitter(globals, runID))
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error(), hintForPattern(err))
	}
	log := globals.Log().With(zap.String("run_id", runID))
	w := relay.NewWorker(c.Host, c.Address, sink, workerOptions(cfg, log))
	log.Debug("relaying", zap.String("host", c.Host), zap.String("addr", w.Addr()))

	// Returns when the stream ends or the context is cancelled
	w.Run(ctx)
	return nil
}
