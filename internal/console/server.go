// Package console is the remote end of the log relay: it serves a growing
// log file to every client that connects, following appended data.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultChunkSize    = 4096
)

// Server streams Path to each client from the beginning, then keeps
// following the file until the client disconnects or Serve's context ends
type Server struct {
	Path         string
	PollInterval time.Duration
	ChunkSize    int
	Clock        clock.Clock
	Logger       *zap.Logger
}

func (s *Server) defaults() {
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.Clock == nil {
		s.Clock = clock.New()
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
}

// Serve accepts clients on ln until ctx is cancelled. It closes ln and
// returns once every client handler has finished.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.defaults()
	group, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = ln.Close() })
	defer stop()

	group.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			group.Go(func() error {
				s.handle(gctx, conn)
				return nil
			})
		}
	})
	return group.Wait()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := s.Logger.With(zap.Stringer("client", conn.RemoteAddr()))
	log.Debug("client connected")
	defer log.Debug("client done")

	// Clients never send; a returning read means the peer went away
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		_, _ = io.Copy(io.Discard, conn)
		cancel()
	}()
	defer func() {
		_ = conn.Close()
		<-readerDone
	}()

	f, err := os.Open(s.Path)
	if err != nil {
		log.Warn("cannot open followed file", zap.String("path", s.Path), zap.Error(err))
		return
	}
	defer f.Close()

	if err := s.follow(ctx, f, conn); err != nil {
		log.Debug("stream ended", zap.Error(err))
	}
}

// follow copies f to w, polling for appended data at EOF. A file that
// shrinks is assumed rotated in place and is re-read from the start.
func (s *Server) follow(ctx context.Context, f *os.File, w io.Writer) error {
	buf := make([]byte, s.ChunkSize)
	var offset int64
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write to client: %w", werr)
			}
			offset += int64(n)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read %s: %w", s.Path, err)
		}

		if info, serr := f.Stat(); serr == nil && info.Size() < offset {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind %s: %w", s.Path, err)
			}
			offset = 0
			continue
		}

		timer := s.Clock.Timer(s.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
