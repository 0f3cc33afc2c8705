package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/vburojevic/hostlog/internal/domain"
)

// Format selects how the Emitter renders events
type Format string

const (
	FormatText   Format = "text"
	FormatNDJSON Format = "ndjson"
)

// Emitter is the display sink shared by the progress renderer and relay
// workers. Writes are serialized so lines from different hosts never tear.
type Emitter struct {
	mu     sync.Mutex
	format Format
	runID  string
	quiet  bool
	nd     *NDJSONWriter
	text   *TextWriter
}

// EmitterOptions configures an Emitter
type EmitterOptions struct {
	Format Format
	RunID  string
	Color  bool
	// Quiet drops relay status notices (starting/waiting)
	Quiet bool
}

func NewEmitter(w io.Writer, opts EmitterOptions) *Emitter {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	return &Emitter{
		format: opts.Format,
		runID:  opts.RunID,
		quiet:  opts.Quiet,
		nd:     NewNDJSONWriter(w),
		text:   NewTextWriter(w, opts.Color),
	}
}

// RunID returns the run identifier stamped on NDJSON events
func (e *Emitter) RunID() string { return e.runID }

// Format returns the output format
func (e *Emitter) Format() Format { return e.format }

func (e *Emitter) emit(nd func() error, text func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.format == FormatNDJSON {
		return nd()
	}
	return text()
}

func (e *Emitter) Display(msg string) error {
	return e.emit(
		func() error { return e.nd.WriteDisplay(msg, e.runID) },
		func() error { return e.text.Display(msg) },
	)
}

func (e *Emitter) Banner(title string) error {
	return e.emit(
		func() error { return e.nd.WriteBanner(title, e.runID) },
		func() error { return e.text.Banner(title) },
	)
}

func (e *Emitter) Result(status domain.Status, host, msg string) error {
	return e.emit(
		func() error { return e.nd.WriteResult(status, host, msg, e.runID) },
		func() error { return e.text.Result(status, msg) },
	)
}

func (e *Emitter) Warning(msg string) error {
	return e.emit(
		func() error { return e.nd.WriteWarning(msg, e.runID) },
		func() error { return e.text.Warning(msg) },
	)
}

func (e *Emitter) Error(code, msg string, hint ...string) error {
	return e.emit(
		func() error { return e.nd.WriteError(code, msg, hint...) },
		func() error {
			if len(hint) > 0 && hint[0] != "" {
				return e.text.Error(code, fmt.Sprintf("%s (%s)", msg, hint[0]))
			}
			return e.text.Error(code, msg)
		},
	)
}

func (e *Emitter) Recap(stats []domain.HostStats) error {
	return e.emit(
		func() error { return e.nd.WriteRecap(stats, e.runID) },
		func() error { return e.text.Recap(stats) },
	)
}

func (e *Emitter) Metadata(version, commit, buildDate string) error {
	return e.emit(
		func() error { return e.nd.WriteMetadata(version, commit, buildDate) },
		func() error { return e.text.Display(fmt.Sprintf("hostlog %s (%s)", version, commit)) },
	)
}

// RelayStarting, RelayWaiting and RelayLine make the Emitter a relay sink.
// Sink methods cannot report errors; a failed write is dropped.

func (e *Emitter) RelayStarting(host string) {
	if e.quiet {
		return
	}
	_ = e.emit(
		func() error { return e.nd.WriteRelayStatus(host, domain.RelayStarting, 0, e.runID) },
		func() error { return e.text.RelayStarting(host) },
	)
}

func (e *Emitter) RelayWaiting(host string, attempt int) {
	if e.quiet {
		return
	}
	_ = e.emit(
		func() error { return e.nd.WriteRelayStatus(host, domain.RelayWaiting, attempt, e.runID) },
		func() error { return e.text.RelayWaiting(host) },
	)
}

func (e *Emitter) RelayLine(line domain.RelayLine) {
	_ = e.emit(
		func() error { return e.nd.WriteRelayLine(line, e.runID) },
		func() error { return e.text.RelayLine(line) },
	)
}
