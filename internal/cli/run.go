package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/vburojevic/hostlog/internal/config"
	"github.com/vburojevic/hostlog/internal/events"
	"github.com/vburojevic/hostlog/internal/progress"
	"github.com/vburojevic/hostlog/internal/relay"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunCmd renders a runner event stream and relays remote logs of
// qualifying tasks while it runs
type RunCmd struct {
	Events      string `short:"e" type:"path" help:"Read runner events from FILE (default: stdin)"`
	Port        int    `help:"Port of the remote log servers (default from config)"`
	Markers     string `help:"Relay marker store: file or memory (default from config)"`
	MarkerDir   string `type:"path" help:"Directory for relay marker files; runs sharing it share relays (default from config)"`
	DisplayArgs bool   `help:"Show task arguments in task banners"`
	NoRelay     bool   `help:"Render progress only; never connect to hosts"`

	RelayFilterFlags `embed:""`
}

// Run executes the run command
func (c *RunCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := c.effectiveConfig(globals)
	if err := cfg.Validate(); err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error(), "Run `hostlog config show` to inspect the effective configuration")
	}

	in, err := c.openEvents(globals)
	if err != nil {
		return outputErrorCommon(globals, "EVENTS_UNREADABLE", err.Error(), hintForEvents(err))
	}
	defer in.Close()

	runID := uuid.NewString()
	log := globals.Log().With(zap.String("run_id", runID))
	emitter := newEmitter(globals, runID)
	run := relay.NewRunState(runID)

	var sup *relay.Supervisor
	var rl progress.Relay
	if !c.NoRelay {
		sink, err := c.sink(emitter)
		if err != nil {
			return outputErrorCommon(globals, "INVALID_FLAGS", err.Error(), hintForPattern(err))
		}
		store, err := markerStore(cfg.Relay)
		if err != nil {
			// Fail open: relays still start, deduplicated within this process only
			log.Warn("marker store unavailable; keeping relay markers in memory", zap.Error(err))
			emitWarning(globals, emitter, "relay markers kept in memory: "+err.Error())
			store = relay.NewMemoryStore()
		}
		sup = relay.NewSupervisor(relay.NewRegistry(store, log), sink, supervisorOptions(cfg.Relay, log))
		rl = sup
	}
	renderer := progress.New(emitter, rl, run, progress.Options{
		Verbosity:      globals.Verbosity,
		DisplayArgs:    cfg.Display.Args,
		DisplaySkipped: cfg.Display.Skipped,
		Logger:         log,
	})

	log.Debug("run started", zap.String("events", c.source()))
	group, gctx := errgroup.WithContext(ctx)
	// Unblocks a decoder stuck reading stdin once the run is cancelled
	unblock := context.AfterFunc(gctx, func() { _ = in.Close() })
	defer unblock()

	group.Go(func() error {
		return consume(gctx, events.NewDecoder(in), renderer, log)
	})
	runErr := group.Wait()
	interrupted := ctx.Err() != nil

	// A stream cut short never reaches its recap; markers are still ours to clear
	if sup != nil {
		if err := sup.OnRunComplete(run); err != nil {
			emitWarning(globals, emitter, "failed to clear relay markers: "+err.Error())
		}
	}
	stop()
	if !drainRelays(run, relayDrainTimeout) {
		log.Debug("relay workers still running at exit")
	}

	if interrupted {
		log.Info("run interrupted")
		return nil
	}
	if runErr != nil {
		return outputErrorCommon(globals, "RUN_FAILED", runErr.Error())
	}
	return nil
}

func (c *RunCmd) effectiveConfig(globals *Globals) *config.Config {
	cfg := config.Default()
	if globals.Config != nil {
		copied := *globals.Config
		cfg = &copied
	}
	if c.Port != 0 {
		cfg.Relay.Port = c.Port
	}
	if c.Markers != "" {
		cfg.Relay.MarkerStore = c.Markers
	}
	if c.MarkerDir != "" {
		cfg.Relay.MarkerDir = c.MarkerDir
	}
	if c.DisplayArgs {
		cfg.Display.Args = true
	}
	return cfg
}

func (c *RunCmd) source() string {
	if c.Events == "" || c.Events == "-" {
		return "stdin"
	}
	return c.Events
}

func (c *RunCmd) openEvents(globals *Globals) (io.ReadCloser, error) {
	if c.Events == "" || c.Events == "-" {
		if rc, ok := globals.Stdin.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(globals.Stdin), nil
	}
	f, err := os.Open(c.Events)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	return f, nil
}

// consume renders events until the stream ends. Malformed lines are logged
// and skipped; the stream goes on.
func consume(ctx context.Context, dec *events.Decoder, r *progress.Renderer, log *zap.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var decodeErr *events.DecodeError
		if errors.As(err, &decodeErr) {
			if errors.Is(err, events.ErrUnknownEvent) {
				log.Debug("skipping event", zap.Int("line", decodeErr.Line), zap.Error(decodeErr.Err))
			} else {
				log.Warn("skipping malformed event", zap.Int("line", decodeErr.Line), zap.Error(decodeErr.Err))
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read events: %w", err)
		}
		if err := r.Handle(ctx, ev); err != nil {
			return fmt.Errorf("render event on line %d: %w", ev.Line, err)
		}
	}
}
