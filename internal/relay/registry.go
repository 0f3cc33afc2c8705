package relay

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry decides whether a relay worker still has to be launched for a
// host. Launches are recorded as markers so repeated triggers, including
// triggers seen by a restarted process, do not start duplicate workers.
type Registry struct {
	store  MarkerStore
	logger *zap.Logger

	mu sync.Mutex
	// hosts launched although their marker could not be written
	failedOpen map[string]struct{}
}

// NewRegistry creates a registry backed by store
func NewRegistry(store MarkerStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:      store,
		logger:     logger,
		failedOpen: make(map[string]struct{}),
	}
}

// ShouldLaunch reports true exactly once per host until ForgetAll removes it.
// A marker that cannot be written fails open: the host is launched and
// remembered in memory for the rest of the process.
func (r *Registry) ShouldLaunch(host string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.failedOpen[host]; ok {
		return false
	}
	created, err := r.store.Create(host)
	if err != nil {
		r.logger.Warn("relay marker could not be written; launching without it",
			zap.String("host", host), zap.Error(err))
		r.failedOpen[host] = struct{}{}
		return true
	}
	return created
}

// ForgetAll removes the markers of hosts. Hosts without a marker are skipped.
func (r *Registry) ForgetAll(hosts []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for _, host := range hosts {
		delete(r.failedOpen, host)
		if err := r.store.Remove(host); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove marker for %s: %w", host, err))
		}
	}
	return errs
}

// Store returns the backing marker store
func (r *Registry) Store() MarkerStore {
	return r.store
}
