package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/hostlog/internal/relay"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// serveOnce accepts a single client, writes payload and hangs up
func serveOnce(t *testing.T, payload string) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte(payload))
		_ = conn.Close()
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return ln.Addr().(*net.TCPAddr).Port
}

func requireCLIError(t *testing.T, err error, code string) {
	t.Helper()
	var cliErr *CLIError
	require.True(t, errors.As(err, &cliErr), "want CLIError, got %v", err)
	assert.Equal(t, code, cliErr.Code)
}

const playbookEvents = `{"event":"playbook_start","playbook":"site.yml"}
{"event":"play_start","play":{"name":"deploy","hosts":["web-1"],"hostvars":{"web-1":{"ansible_host":"127.0.0.1"}}}}
{"event":"task_start","task":{"name":"build","uuid":"u-1","action":"shell"}}
{"event":"runner_ok","host":"web-1","task":{"name":"build","uuid":"u-1","action":"shell"},"result":{"changed":true,"rc":0}}
{"event":"stats","stats":{"web-1":{"ok":1,"changed":1}}}
`

// --- Run ---

func TestRunCmd_RendersWithoutRelay(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "text")
	globals.Stdin = strings.NewReader(playbookEvents)

	require.NoError(t, (&RunCmd{NoRelay: true}).Run(globals))

	out := stdout.String()
	assert.Contains(t, out, "PLAY [deploy] ***")
	assert.Contains(t, out, "TASK [build] ***")
	assert.Contains(t, out, "changed: [web-1]\n")
	assert.Contains(t, out, "PLAY RECAP ***")
	assert.Contains(t, out, "ok=1    changed=1    unreachable=0    failed=0")
	assert.NotContains(t, out, "starting to log")
}

// lockedBuffer lets the test read output while relay workers write it
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunCmd_RelaysAndClearsMarkers(t *testing.T) {
	globals, _, _ := testGlobals(t, "text")
	stdout := &lockedBuffer{}
	globals.Stdout = stdout
	globals.Config.Relay.Port = serveOnce(t, "compiling\n")
	markerDir := filepath.Join(t.TempDir(), "run-markers")

	pr, pw := io.Pipe()
	globals.Stdin = pr
	done := make(chan error, 1)
	go func() { done <- (&RunCmd{MarkerDir: markerDir}).Run(globals) }()

	head, stats, _ := strings.Cut(playbookEvents, `{"event":"stats"`)
	_, err := io.WriteString(pw, head)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "[web-1] compiling")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, stdout.String(), "[web-1] starting to log")
	assert.FileExists(t, filepath.Join(markerDir, relay.MarkerPrefix+"web-1"), "--marker-dir holds this run's markers")

	_, err = io.WriteString(pw, `{"event":"stats"`+stats)
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)

	assert.Contains(t, stdout.String(), "PLAY RECAP")
	entries, err := os.ReadDir(markerDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "markers are removed when the run completes")
	assert.NoFileExists(t, filepath.Join(globals.Config.Relay.MarkerDir, relay.MarkerPrefix+"web-1"))
}

func TestRunCmd_MarkerDirUnavailableFallsBackToMemory(t *testing.T) {
	globals, stdout, stderr := testGlobals(t, "text")
	notADir := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(notADir, nil, 0o644))
	globals.Config.Relay.MarkerDir = filepath.Join(notADir, "markers")
	globals.Config.Relay.Port = serveOnce(t, "")
	globals.Stdin = strings.NewReader(playbookEvents)

	require.NoError(t, (&RunCmd{}).Run(globals))

	out := stdout.String()
	assert.Contains(t, out, "PLAY [deploy]")
	assert.Contains(t, out, "TASK [build]")
	assert.Contains(t, out, "[web-1] starting to log")
	assert.Contains(t, out, "PLAY RECAP")
	assert.Contains(t, stderr.String(), "relay markers kept in memory")
}

func TestRunCmd_ReadsEventsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(playbookEvents), 0o644))

	globals, stdout, _ := testGlobals(t, "text")
	require.NoError(t, (&RunCmd{Events: path, Markers: "memory"}).Run(globals))
	assert.Contains(t, stdout.String(), "PLAY RECAP")
}

func TestRunCmd_NDJSONCarriesOneRunID(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	globals.Stdin = strings.NewReader(playbookEvents)

	require.NoError(t, (&RunCmd{NoRelay: true}).Run(globals))

	items := decodeLines(t, stdout)
	require.NotEmpty(t, items)
	runID, _ := items[0]["run_id"].(string)
	require.NotEmpty(t, runID)

	types := map[string]bool{}
	for _, it := range items {
		types[it["type"].(string)] = true
		assert.Equal(t, runID, it["run_id"])
	}
	assert.True(t, types["banner"])
	assert.True(t, types["result"])
	assert.True(t, types["recap"])
}

func TestRunCmd_SkipsMalformedLines(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	globals, stdout, _ := testGlobals(t, "text")
	globals.Logger = zap.New(core)
	globals.Stdin = strings.NewReader("not json\n" +
		`{"event":"v2_on_any"}` + "\n" +
		playbookEvents)

	require.NoError(t, (&RunCmd{NoRelay: true}).Run(globals))

	assert.Contains(t, stdout.String(), "PLAY RECAP")
	malformed := logs.FilterMessage("skipping malformed event").All()
	require.Len(t, malformed, 1)
	assert.EqualValues(t, 1, malformed[0].ContextMap()["line"])
	assert.Equal(t, 1, logs.FilterMessage("skipping event").Len())
}

func TestRunCmd_Errors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		globals, _, stderr := testGlobals(t, "text")
		err := (&RunCmd{Markers: "redis"}).Run(globals)
		requireCLIError(t, err, "INVALID_CONFIG")
		assert.Contains(t, stderr.String(), "relay.marker_store")
	})

	t.Run("missing events file", func(t *testing.T) {
		globals, _, _ := testGlobals(t, "text")
		err := (&RunCmd{Events: filepath.Join(t.TempDir(), "nope.ndjson")}).Run(globals)
		requireCLIError(t, err, "EVENTS_UNREADABLE")
	})

	t.Run("flags do not leak into shared config", func(t *testing.T) {
		globals, _, _ := testGlobals(t, "text")
		globals.Stdin = strings.NewReader("")
		require.NoError(t, (&RunCmd{Port: 2000, NoRelay: true}).Run(globals))
		assert.Equal(t, 19885, globals.Config.Relay.Port)
	})
}

// --- Relay ---

func TestRelayCmd_StreamsUntilEnd(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "text")
	globals.Config.Relay.Port = serveOnce(t, "first\nsecond")

	cmd := &RelayCmd{Host: "web-1", Address: "127.0.0.1"}
	require.NoError(t, cmd.run(context.Background(), globals))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "[web-1] starting to log", lines[0])
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}\.\d{3} \[web-1\] first$`, lines[len(lines)-2])
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}\.\d{3} \[web-1\] second$`, lines[len(lines)-1])
}

func TestRelayCmd_FiltersLines(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "text")
	globals.Config.Relay.Port = serveOnce(t, "noise 1\nkeep me\nnoise 2\n")

	cmd := &RelayCmd{Host: "web-1", Address: "127.0.0.1"}
	cmd.Exclude = []string{"^noise"}
	require.NoError(t, cmd.run(context.Background(), globals))

	out := stdout.String()
	assert.Contains(t, out, "[web-1] starting to log")
	assert.Contains(t, out, "[web-1] keep me")
	assert.NotContains(t, out, "noise")
}

func TestRelayCmd_RejectsBadPattern(t *testing.T) {
	globals, _, _ := testGlobals(t, "text")
	cmd := &RelayCmd{Host: "h", Address: "127.0.0.1"}
	cmd.Grep = []string{"("}
	err := cmd.run(context.Background(), globals)
	requireCLIError(t, err, "INVALID_FLAGS")
}

func TestRelayCmd_RejectsBadPort(t *testing.T) {
	globals, _, _ := testGlobals(t, "ndjson")
	err := (&RelayCmd{Host: "h", Address: "127.0.0.1", Port: 70000}).run(context.Background(), globals)
	requireCLIError(t, err, "INVALID_FLAGS")
}

// --- Console ---

func TestConsoleCmd_ServesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	globals, stdout, _ := testGlobals(t, "text")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	cmd := &ConsoleCmd{File: path}
	go func() { done <- cmd.serve(ctx, globals, ln, 5*time.Millisecond) }()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)
	require.NoError(t, conn.Close())

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, stdout.String(), "serving "+path)
}

func TestConsoleCmd_MissingFile(t *testing.T) {
	globals, _, _ := testGlobals(t, "text")
	err := (&ConsoleCmd{File: filepath.Join(t.TempDir(), "missing.log"), Listen: "127.0.0.1:0"}).Run(globals)
	requireCLIError(t, err, "FILE_NOT_FOUND")
}

func TestConsoleCmd_BadPollInterval(t *testing.T) {
	globals, _, _ := testGlobals(t, "text")
	err := (&ConsoleCmd{File: "x", PollInterval: "often"}).Run(globals)
	requireCLIError(t, err, "INVALID_FLAGS")
}

// --- Markers ---

func seedMarkers(t *testing.T, globals *Globals, hosts ...string) *relay.FileStore {
	t.Helper()
	store, err := relay.NewFileStore(globals.Config.Relay.MarkerDir)
	require.NoError(t, err)
	for _, h := range hosts {
		_, err := store.Create(h)
		require.NoError(t, err)
	}
	return store
}

func TestMarkersListCmd_Run(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		require.NoError(t, (&MarkersListCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), "No relay markers in "+globals.Config.Relay.MarkerDir)
	})

	t.Run("text table", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		store := seedMarkers(t, globals, "web-1", "db-1")
		require.NoError(t, (&MarkersListCmd{}).Run(globals))

		out := stdout.String()
		assert.Contains(t, strings.ToUpper(out), "HOST")
		assert.Contains(t, out, "web-1")
		assert.Contains(t, out, "db-1")
		assert.Contains(t, out, store.Path("web-1"))
	})

	t.Run("ndjson", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		seedMarkers(t, globals, "web-1", "db-1")
		require.NoError(t, (&MarkersListCmd{}).Run(globals))

		items := decodeLines(t, stdout)
		require.Len(t, items, 2)
		assert.Equal(t, "marker", items[0]["type"])
		assert.Equal(t, "db-1", items[0]["host"])
		assert.Equal(t, "web-1", items[1]["host"])
		assert.NotEmpty(t, items[1]["created"])
	})

	t.Run("dir flag overrides config", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		seedMarkers(t, globals, "web-1")
		require.NoError(t, (&MarkersListCmd{Dir: t.TempDir()}).Run(globals))
		assert.Empty(t, strings.TrimSpace(stdout.String()))
	})
}

func TestMarkersClearCmd_Run(t *testing.T) {
	t.Run("named hosts", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		store := seedMarkers(t, globals, "web-1", "db-1")

		require.NoError(t, (&MarkersClearCmd{Hosts: []string{"web-1", "never-seen"}}).Run(globals))
		assert.Contains(t, stdout.String(), "Cleared 2 relay marker(s)")

		keys, err := store.List()
		require.NoError(t, err)
		assert.Equal(t, []string{"db-1"}, keys)
	})

	t.Run("all", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		store := seedMarkers(t, globals, "web-1", "db-1")

		require.NoError(t, (&MarkersClearCmd{}).Run(globals))

		items := decodeLines(t, stdout)
		require.Len(t, items, 1)
		assert.Equal(t, "markers_cleared", items[0]["type"])
		assert.Equal(t, []interface{}{"db-1", "web-1"}, items[0]["hosts"])

		keys, err := store.List()
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

// --- Doctor ---

func TestDoctorCmd_Run(t *testing.T) {
	t.Run("healthy with reachable server", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		globals, stdout, _ := testGlobals(t, "text")
		require.NoError(t, (&DoctorCmd{Address: []string{ln.Addr().String()}}).Run(globals))

		out := stdout.String()
		assert.Contains(t, out, "✓ Config")
		assert.Contains(t, out, "✓ Marker directory")
		assert.Contains(t, out, "No markers present")
		assert.Contains(t, out, "Accepting connections")
		assert.Contains(t, out, "All checks passed!")
	})

	t.Run("stale markers and unreachable server", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		require.NoError(t, ln.Close())

		globals, stdout, _ := testGlobals(t, "ndjson")
		globals.Config.Relay.Port = port
		seedMarkers(t, globals, "web-1")

		require.NoError(t, (&DoctorCmd{Address: []string{"127.0.0.1"}}).Run(globals))

		var report doctorReport
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
		assert.Equal(t, "doctor", report.Type)
		assert.False(t, report.AllPassed)
		assert.Equal(t, 1, report.ErrorCount)
		assert.Equal(t, 1, report.WarnCount)
		assert.Contains(t, report.Checks[2].Message, "web-1")
	})

	t.Run("invalid config", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		globals.Config.Relay.Port = 0
		require.NoError(t, (&DoctorCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), "✗ Config")
	})
}
