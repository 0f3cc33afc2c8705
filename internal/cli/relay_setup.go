package cli

import (
	"time"

	"github.com/vburojevic/hostlog/internal/config"
	"github.com/vburojevic/hostlog/internal/filter"
	"github.com/vburojevic/hostlog/internal/relay"
	"go.uber.org/zap"
)

// relayDrainTimeout bounds how long a finished command waits for cancelled
// relay workers to return
const relayDrainTimeout = time.Second

// RelayFilterFlags select which relayed lines are displayed
type RelayFilterFlags struct {
	Grep        []string `short:"g" help:"Only show relayed lines matching regex (repeatable)"`
	Exclude     []string `short:"x" help:"Hide relayed lines matching regex (repeatable)"`
	ExcludeHost []string `help:"Hide lines relayed from HOST; a trailing * matches a prefix (repeatable)"`
}

func (f RelayFilterFlags) sink(next relay.Sink) (relay.Sink, error) {
	chain, err := filter.Build(filter.Options{
		Grep:         f.Grep,
		Exclude:      f.Exclude,
		ExcludeHosts: f.ExcludeHost,
	})
	if err != nil {
		return nil, err
	}
	if chain == nil {
		return next, nil
	}
	return filter.NewSink(next, chain), nil
}

func markerStore(cfg config.RelayConfig) (relay.MarkerStore, error) {
	if cfg.MarkerStore == config.MarkerStoreMemory {
		return relay.NewMemoryStore(), nil
	}
	return relay.NewFileStore(cfg.MarkerDir)
}

func workerOptions(cfg config.RelayConfig, log *zap.Logger) relay.WorkerOptions {
	return relay.WorkerOptions{
		Port:          cfg.Port,
		RetryInterval: cfg.RetryIntervalDuration(),
		DialTimeout:   cfg.DialTimeoutDuration(),
		ChunkSize:     cfg.ChunkSize,
		Logger:        log,
	}
}

func supervisorOptions(cfg config.RelayConfig, log *zap.Logger) relay.SupervisorOptions {
	return relay.SupervisorOptions{
		Actions:         cfg.Actions,
		AddressVar:      cfg.AddressVar,
		AddressFallback: cfg.AddressFallback,
		Worker:          workerOptions(cfg, log),
		Logger:          log,
	}
}

// drainRelays waits up to timeout for the run's workers to return after
// their context was cancelled
func drainRelays(run *relay.RunState, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, h := range run.Handles() {
		select {
		case <-h.Done():
		case <-deadline.C:
			return false
		}
	}
	return true
}
