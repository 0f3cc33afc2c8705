package filter

import (
	"fmt"

	"github.com/vburojevic/hostlog/internal/domain"
	"github.com/vburojevic/hostlog/internal/relay"
)

// Options are the user-facing filter settings
type Options struct {
	Grep         []string
	Exclude      []string
	ExcludeHosts []string
}

// Build compiles opts into a chain. It returns nil when nothing filters.
func Build(opts Options) (*Chain, error) {
	chain := NewChain()
	for _, p := range opts.Grep {
		f, err := NewRegexFilter(p)
		if err != nil {
			return nil, fmt.Errorf("invalid --grep pattern %q: %w", p, err)
		}
		chain.Add(f)
	}
	for _, p := range opts.Exclude {
		f, err := NewExcludePatternFilter(p)
		if err != nil {
			return nil, fmt.Errorf("invalid --exclude pattern %q: %w", p, err)
		}
		chain.Add(f)
	}
	if len(opts.ExcludeHosts) > 0 {
		chain.Add(NewExcludeHostFilter(opts.ExcludeHosts))
	}
	if chain.Len() == 0 {
		return nil, nil
	}
	return chain, nil
}

// Sink passes relay status notices through and drops lines that fail the filter
type Sink struct {
	next   relay.Sink
	filter Filter
}

// NewSink wraps next. A nil filter passes everything.
func NewSink(next relay.Sink, f Filter) relay.Sink {
	if f == nil {
		return next
	}
	return &Sink{next: next, filter: f}
}

func (s *Sink) RelayStarting(host string) {
	s.next.RelayStarting(host)
}

func (s *Sink) RelayWaiting(host string, attempt int) {
	s.next.RelayWaiting(host, attempt)
}

func (s *Sink) RelayLine(line domain.RelayLine) {
	if s.filter.Match(&line) {
		s.next.RelayLine(line)
	}
}
