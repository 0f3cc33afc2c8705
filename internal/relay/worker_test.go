package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func runWorker(ctx context.Context, w *Worker) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_StreamsLines(t *testing.T) {
	port := serveChunks(t, "hello\nwor", "ld  \t\n", "tail")
	sink := newRecordingSink()
	w := NewWorker("web-1", "127.0.0.1", sink, WorkerOptions{
		Port:   port,
		Logger: zaptest.NewLogger(t),
	})
	assert.Equal(t, loopback(port), w.Addr())

	waitDone(t, runWorker(context.Background(), w))

	assert.Equal(t, []string{"web-1"}, sink.Starts())
	assert.Equal(t, []string{"hello", "world", "tail"}, sink.Texts())
	assert.Zero(t, sink.WaitCount())
}

func TestWorker_TimestampsFromClock(t *testing.T) {
	port := serveChunks(t, "one\n")
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sink := newRecordingSink()
	w := NewWorker("web-1", "127.0.0.1", sink, WorkerOptions{Port: port, Clock: mock})

	waitDone(t, runWorker(context.Background(), w))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.lines, 1)
	assert.Equal(t, "web-1", sink.lines[0].Host)
	assert.Equal(t, mock.Now(), sink.lines[0].Timestamp)
}

func TestWorker_WaitsForListener(t *testing.T) {
	port := freePort(t)
	sink := newRecordingSink()
	w := NewWorker("web-1", "127.0.0.1", sink, WorkerOptions{
		Port:          port,
		RetryInterval: 10 * time.Millisecond,
		Logger:        zaptest.NewLogger(t),
	})
	done := runWorker(context.Background(), w)

	require.Eventually(t, func() bool { return sink.WaitCount() >= 2 }, 5*time.Second, 5*time.Millisecond)

	ln, err := net.Listen("tcp", loopback(port))
	require.NoError(t, err)
	defer ln.Close()
	conn, err := ln.Accept()
	require.NoError(t, err)
	_, err = conn.Write([]byte("ready\n"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	waitDone(t, done)
	assert.Equal(t, []string{"ready"}, sink.Texts())
	assert.Equal(t, []string{"web-1"}, sink.Starts(), "reconnecting must not restart the worker")
}

// failingDialer refuses every connection
type failingDialer struct {
	attempts atomic.Int32
}

func (d *failingDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	d.attempts.Add(1)
	return nil, errors.New("connection refused")
}

func TestWorker_RetryIntervalIsFixed(t *testing.T) {
	mock := clock.NewMock()
	dialer := &failingDialer{}
	sink := newRecordingSink()
	w := NewWorker("web-1", "10.0.0.1", sink, WorkerOptions{
		RetryInterval: 100 * time.Millisecond,
		Dialer:        dialer,
		Clock:         mock,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := runWorker(ctx, w)

	for attempt := 1; attempt <= 5; attempt++ {
		select {
		case got := <-sink.waitCh:
			require.Equal(t, attempt, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("no waiting status for attempt %d", attempt)
		}
		require.Equal(t, int32(attempt), dialer.attempts.Load())

		mock.Add(99 * time.Millisecond)
		select {
		case <-sink.waitCh:
			t.Fatalf("retried before the interval elapsed (attempt %d)", attempt)
		case <-time.After(20 * time.Millisecond):
		}
		mock.Add(time.Millisecond)
	}

	cancel()
	waitDone(t, done)
}

func TestWorker_CancelWhileWaiting(t *testing.T) {
	sink := newRecordingSink()
	w := NewWorker("web-1", "10.0.0.1", sink, WorkerOptions{Dialer: &failingDialer{}, RetryInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := runWorker(ctx, w)

	select {
	case <-sink.waitCh:
	case <-time.After(5 * time.Second):
		t.Fatal("no waiting status")
	}
	cancel()
	waitDone(t, done)
}

func TestWorker_CancelWhileStreaming(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var wg sync.WaitGroup
	accepted := make(chan net.Conn, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("first\n"))
		accepted <- conn
	}()

	sink := newRecordingSink()
	w := NewWorker("web-1", "127.0.0.1", sink, WorkerOptions{Port: ln.Addr().(*net.TCPAddr).Port})
	ctx, cancel := context.WithCancel(context.Background())
	done := runWorker(ctx, w)

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never connected")
	}
	defer server.Close()
	require.Eventually(t, func() bool { return len(sink.Texts()) == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	waitDone(t, done)
	wg.Wait()
	assert.Equal(t, []string{"first"}, sink.Texts())
}

func TestWorker_DoesNotRedialAfterStreamEnds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var accepts atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepts.Add(1)
			_, _ = conn.Write([]byte("bye\n"))
			_ = conn.Close()
		}
	}()

	sink := newRecordingSink()
	w := NewWorker("web-1", "127.0.0.1", sink, WorkerOptions{
		Port:          ln.Addr().(*net.TCPAddr).Port,
		RetryInterval: time.Millisecond,
	})
	waitDone(t, runWorker(context.Background(), w))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, ln.Close())
	wg.Wait()
	assert.Equal(t, int32(1), accepts.Load())
	assert.Equal(t, []string{"bye"}, sink.Texts())
}
