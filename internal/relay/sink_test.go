package relay

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vburojevic/hostlog/internal/domain"
)

// recordingSink captures everything a worker reports
type recordingSink struct {
	mu     sync.Mutex
	starts []string
	waits  []int
	lines  []domain.RelayLine
	waitCh chan int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{waitCh: make(chan int, 64)}
}

func (s *recordingSink) RelayStarting(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, host)
}

func (s *recordingSink) RelayWaiting(host string, attempt int) {
	s.mu.Lock()
	s.waits = append(s.waits, attempt)
	s.mu.Unlock()
	select {
	case s.waitCh <- attempt:
	default:
	}
}

func (s *recordingSink) RelayLine(line domain.RelayLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *recordingSink) Starts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.starts...)
}

func (s *recordingSink) WaitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

func (s *recordingSink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, l.Text)
	}
	return out
}

// serveChunks accepts connections on a loopback listener and writes chunks to
// each of them before closing it. It returns the listener port.
func serveChunks(t *testing.T, chunks ...string) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			for _, c := range chunks {
				if _, err := conn.Write([]byte(c)); err != nil {
					break
				}
				time.Sleep(2 * time.Millisecond)
			}
			_ = conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

// freePort returns a loopback port with no listener on it
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func loopback(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}
