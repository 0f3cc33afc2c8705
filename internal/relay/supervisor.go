package relay

import (
	"context"
	"slices"
	"sync"

	"github.com/vburojevic/hostlog/internal/domain"
	"go.uber.org/zap"
)

// DefaultActions are the task actions that get a log relay
var DefaultActions = []string{"command", "shell"}

// DefaultAddressVar is the host variable holding a host's address
const DefaultAddressVar = "ansible_host"

// SupervisorOptions configures a Supervisor
type SupervisorOptions struct {
	// Actions qualifying a task for log relaying
	Actions []string
	// AddressVar names the host variable holding the address
	AddressVar string
	// AddressFallback uses the host name when AddressVar is missing
	AddressFallback bool
	Worker          WorkerOptions
	Logger          *zap.Logger
}

// Handle refers to a launched worker. Nothing waits on it during a run.
type Handle struct {
	Host    string
	Address string
	done    chan struct{}
}

// Done is closed when the worker has returned
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// RunState is the relay bookkeeping for one run
type RunState struct {
	ID string

	mu      sync.Mutex
	addrs   map[string]string
	order   []string
	pending []string // registered since the last cleanup
	handles []*Handle
}

// NewRunState creates the state for the run identified by id
func NewRunState(id string) *RunState {
	return &RunState{ID: id, addrs: make(map[string]string)}
}

func (r *RunState) register(host, addr string, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.addrs[host]; !ok {
		r.order = append(r.order, host)
	}
	if !slices.Contains(r.pending, host) {
		r.pending = append(r.pending, host)
	}
	r.addrs[host] = addr
	if h != nil {
		r.handles = append(r.handles, h)
	}
}

// Hosts returns every host registered during the run, in registration order
func (r *RunState) Hosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

func (r *RunState) takePending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	hosts := r.pending
	r.pending = nil
	return hosts
}

// Address returns the address a host was registered with
func (r *RunState) Address(host string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr, ok := r.addrs[host]
	return addr, ok
}

// Handles returns the workers launched by this process during the run
func (r *RunState) Handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.handles)
}

// Supervisor launches one relay worker per host when a qualifying task
// starts and clears the launch markers when the run completes.
type Supervisor struct {
	registry *Registry
	sink     Sink
	opts     SupervisorOptions
	actions  map[string]struct{}
	log      *zap.Logger
}

// NewSupervisor creates a supervisor
func NewSupervisor(registry *Registry, sink Sink, opts SupervisorOptions) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Actions) == 0 {
		opts.Actions = DefaultActions
	}
	if opts.AddressVar == "" {
		opts.AddressVar = DefaultAddressVar
	}
	if opts.Worker.Logger == nil {
		opts.Worker.Logger = opts.Logger
	}
	actions := make(map[string]struct{}, len(opts.Actions))
	for _, a := range opts.Actions {
		actions[a] = struct{}{}
	}
	return &Supervisor{
		registry: registry,
		sink:     sink,
		opts:     opts,
		actions:  actions,
		log:      opts.Logger,
	}
}

// Qualifies reports whether task gets its hosts' logs relayed
func (s *Supervisor) Qualifies(task *domain.Task) bool {
	if task == nil {
		return false
	}
	_, ok := s.actions[task.Action]
	return ok
}

// OnQualifyingTaskStart launches a worker for every host in hosts that has
// none yet. Workers run under ctx in their own goroutines; the call returns
// without waiting for any connection. A host without an address is skipped.
func (s *Supervisor) OnQualifyingTaskStart(ctx context.Context, run *RunState, task *domain.Task, hosts []string, vars domain.HostVars) []*Handle {
	if !s.Qualifies(task) {
		return nil
	}

	var launched []*Handle
	for _, host := range hosts {
		addr, ok := s.resolve(host, vars)
		if !ok {
			s.log.Warn("no address for host; not relaying its log",
				zap.String("host", host), zap.String("var", s.opts.AddressVar), zap.String("run_id", run.ID))
			continue
		}
		if !s.registry.ShouldLaunch(host) {
			// Marker already present: launched earlier in this run,
			// possibly by a previous process. Register it for cleanup.
			run.register(host, addr, nil)
			continue
		}
		h := s.launch(ctx, host, addr)
		run.register(host, addr, h)
		launched = append(launched, h)
		s.log.Debug("relay worker launched",
			zap.String("host", host), zap.String("addr", addr), zap.String("task", task.Name), zap.String("run_id", run.ID))
	}
	return launched
}

// OnRunComplete removes the marker of every host registered during the run.
// Repeated calls only touch hosts registered since the previous one, so a
// marker another process has since created is left alone.
func (s *Supervisor) OnRunComplete(run *RunState) error {
	hosts := run.takePending()
	if err := s.registry.ForgetAll(hosts); err != nil {
		s.log.Warn("relay markers not fully removed", zap.String("run_id", run.ID), zap.Error(err))
		return err
	}
	s.log.Debug("relay markers removed", zap.String("run_id", run.ID), zap.Int("hosts", len(hosts)))
	return nil
}

func (s *Supervisor) resolve(host string, vars domain.HostVars) (string, bool) {
	if addr, ok := vars.Lookup(host, s.opts.AddressVar); ok {
		return addr, true
	}
	if s.opts.AddressFallback && host != "" {
		return host, true
	}
	return "", false
}

func (s *Supervisor) launch(ctx context.Context, host, addr string) *Handle {
	h := &Handle{Host: host, Address: addr, done: make(chan struct{})}
	w := NewWorker(host, addr, s.sink, s.opts.Worker)
	go func() {
		defer close(h.done)
		w.Run(ctx)
	}()
	return h
}
