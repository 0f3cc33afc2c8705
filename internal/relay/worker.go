package relay

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/benbjohnson/clock"
	"github.com/vburojevic/hostlog/internal/domain"
	"go.uber.org/zap"
)

// Sink receives relay output. Implementations must be safe for concurrent use.
type Sink interface {
	RelayStarting(host string)
	RelayWaiting(host string, attempt int)
	RelayLine(line domain.RelayLine)
}

// Dialer opens connections; *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

const (
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultDialTimeout   = 5 * time.Second
)

// WorkerOptions configures relay workers. Zero values take defaults.
type WorkerOptions struct {
	Port          int
	RetryInterval time.Duration
	DialTimeout   time.Duration
	ChunkSize     int
	Dialer        Dialer
	Clock         clock.Clock
	Logger        *zap.Logger
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.Port <= 0 {
		o.Port = domain.DefaultLogPort
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{}
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Worker streams the console log of one host. It owns at most one
// connection and never reconnects once a stream has ended.
type Worker struct {
	host string
	addr string
	sink Sink
	opts WorkerOptions
	log  *zap.Logger
}

// NewWorker creates a worker for host, dialing address on the log port
func NewWorker(host, address string, sink Sink, opts WorkerOptions) *Worker {
	opts = opts.withDefaults()
	addr := net.JoinHostPort(address, strconv.Itoa(opts.Port))
	return &Worker{
		host: host,
		addr: addr,
		sink: sink,
		opts: opts,
		log:  opts.Logger.With(zap.String("host", host), zap.String("addr", addr)),
	}
}

// Addr returns the host:port the worker dials
func (w *Worker) Addr() string {
	return w.addr
}

// Run announces the host, waits for its log listener and forwards every line
// until the stream ends or ctx is cancelled. Connection failures before the
// first successful dial are retried at a fixed interval without limit.
func (w *Worker) Run(ctx context.Context) {
	w.sink.RelayStarting(w.host)

	conn, err := w.connect(ctx)
	if err != nil {
		w.log.Debug("relay stopped before connecting", zap.Error(err))
		return
	}
	defer conn.Close()

	// Closing the connection is the only way to interrupt a blocked read.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	w.log.Debug("relay connected")
	lines := NewReassembler(conn, w.opts.ChunkSize)
	count := 0
	for raw := range lines.Lines() {
		count++
		w.sink.RelayLine(domain.RelayLine{
			Host:      w.host,
			Timestamp: w.opts.Clock.Now(),
			Text:      strings.TrimRightFunc(string(raw), unicode.IsSpace),
		})
	}
	if err := lines.Err(); err != nil && ctx.Err() == nil {
		w.log.Debug("relay stream ended with read error", zap.Error(err), zap.Int("lines", count))
		return
	}
	w.log.Debug("relay stream ended", zap.Int("lines", count))
}

func (w *Worker) connect(ctx context.Context) (net.Conn, error) {
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, w.opts.DialTimeout)
		conn, err := w.opts.Dialer.DialContext(dialCtx, "tcp", w.addr)
		cancel()
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.log.Debug("log listener not ready", zap.Int("attempt", attempt), zap.Error(err))

		// The timer exists before the status goes out so a mock clock
		// advanced by an observer of the status always fires it.
		timer := w.opts.Clock.Timer(w.opts.RetryInterval)
		w.sink.RelayWaiting(w.host, attempt)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
