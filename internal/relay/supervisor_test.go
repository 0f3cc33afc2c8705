package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vburojevic/hostlog/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func commandTask() *domain.Task {
	return &domain.Task{Name: "run tests", Action: "command"}
}

func loopbackVars(hosts ...string) domain.HostVars {
	vars := domain.HostVars{}
	for _, h := range hosts {
		vars[h] = map[string]string{"ansible_host": "127.0.0.1"}
	}
	return vars
}

func waitHandles(t *testing.T, handles []*Handle) {
	t.Helper()
	for _, h := range handles {
		waitDone(t, h.Done())
	}
}

func newTestSupervisor(t *testing.T, store MarkerStore, sink Sink, port int, logger *zap.Logger) *Supervisor {
	t.Helper()
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	return NewSupervisor(NewRegistry(store, logger), sink, SupervisorOptions{
		Logger: logger,
		Worker: WorkerOptions{Port: port, RetryInterval: 5 * time.Millisecond},
	})
}

func TestSupervisor_RepeatedTriggerLaunchesOnce(t *testing.T) {
	port := serveChunks(t, "building\n")
	sink := newRecordingSink()
	sup := newTestSupervisor(t, NewMemoryStore(), sink, port, nil)
	run := NewRunState("run-1")
	ctx := context.Background()

	first := sup.OnQualifyingTaskStart(ctx, run, commandTask(), []string{"web-1"}, loopbackVars("web-1"))
	second := sup.OnQualifyingTaskStart(ctx, run, commandTask(), []string{"web-1"}, loopbackVars("web-1"))

	require.Len(t, first, 1)
	assert.Empty(t, second)
	waitHandles(t, first)

	assert.Equal(t, []string{"web-1"}, sink.Starts())
	assert.Equal(t, []string{"building"}, sink.Texts())
	assert.Len(t, run.Handles(), 1)
	assert.Equal(t, []string{"web-1"}, run.Hosts())
}

func TestSupervisor_IgnoresOtherActions(t *testing.T) {
	store := NewMemoryStore()
	sink := newRecordingSink()
	sup := newTestSupervisor(t, store, sink, freePort(t), nil)
	run := NewRunState("run-1")

	for _, task := range []*domain.Task{nil, {Name: "copy", Action: "copy"}, {Name: "debug", Action: "debug"}} {
		handles := sup.OnQualifyingTaskStart(context.Background(), run, task, []string{"web-1"}, loopbackVars("web-1"))
		assert.Empty(t, handles)
	}

	keys, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, sink.Starts())
}

func TestSupervisor_ShellQualifiesByDefault(t *testing.T) {
	port := serveChunks(t)
	sup := newTestSupervisor(t, NewMemoryStore(), newRecordingSink(), port, nil)

	assert.True(t, sup.Qualifies(&domain.Task{Action: "shell"}))
	assert.True(t, sup.Qualifies(&domain.Task{Action: "command"}))
	assert.False(t, sup.Qualifies(&domain.Task{Action: "template"}))
}

func TestSupervisor_CustomActions(t *testing.T) {
	sup := NewSupervisor(NewRegistry(NewMemoryStore(), nil), newRecordingSink(), SupervisorOptions{
		Actions: []string{"script"},
	})

	assert.True(t, sup.Qualifies(&domain.Task{Action: "script"}))
	assert.False(t, sup.Qualifies(&domain.Task{Action: "command"}))
}

func TestSupervisor_MissingAddressSkipsOnlyThatHost(t *testing.T) {
	port := serveChunks(t, "ok\n")
	core, logs := observer.New(zapcore.WarnLevel)
	sink := newRecordingSink()
	store := NewMemoryStore()
	sup := newTestSupervisor(t, store, sink, port, zap.New(core))
	run := NewRunState("run-1")

	vars := loopbackVars("web-1")
	vars["db-1"] = map[string]string{"ansible_user": "root"}

	handles := sup.OnQualifyingTaskStart(context.Background(), run, commandTask(), []string{"db-1", "web-1"}, vars)
	require.Len(t, handles, 1)
	assert.Equal(t, "web-1", handles[0].Host)
	waitHandles(t, handles)

	exists, err := store.Exists("db-1")
	require.NoError(t, err)
	assert.False(t, exists)

	warnings := logs.FilterField(zap.String("host", "db-1")).All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "no address")
}

func TestSupervisor_AddressFallback(t *testing.T) {
	port := serveChunks(t)
	sup := NewSupervisor(NewRegistry(NewMemoryStore(), nil), newRecordingSink(), SupervisorOptions{
		AddressFallback: true,
		Worker:          WorkerOptions{Port: port},
	})
	run := NewRunState("run-1")

	handles := sup.OnQualifyingTaskStart(context.Background(), run, commandTask(), []string{"127.0.0.1"}, nil)
	require.Len(t, handles, 1)
	assert.Equal(t, "127.0.0.1", handles[0].Address)
	waitHandles(t, handles)
}

func TestSupervisor_RunCompleteRemovesLaunchedMarkers(t *testing.T) {
	port := serveChunks(t)
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Create("bystander")
	require.NoError(t, err)

	sup := newTestSupervisor(t, store, newRecordingSink(), port, nil)
	run := NewRunState("run-1")
	hosts := []string{"web-1", "web-2"}

	handles := sup.OnQualifyingTaskStart(context.Background(), run, commandTask(), hosts, loopbackVars(hosts...))
	require.Len(t, handles, 2)
	waitHandles(t, handles)

	keys, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"bystander", "web-1", "web-2"}, keys)

	require.NoError(t, sup.OnRunComplete(run))
	require.NoError(t, sup.OnRunComplete(run))

	keys, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"bystander"}, keys, "hosts never triggered keep their marker")
}

func TestSupervisor_RepeatedCompletionSparesNewerMarkers(t *testing.T) {
	store := NewMemoryStore()
	sup := newTestSupervisor(t, store, newRecordingSink(), freePort(t), nil)
	run := NewRunState("run-1")

	ctx, cancel := context.WithCancel(context.Background())
	handles := sup.OnQualifyingTaskStart(ctx, run, commandTask(), []string{"web-1"}, loopbackVars("web-1"))
	require.Len(t, handles, 1)
	require.NoError(t, sup.OnRunComplete(run))

	// another process relays web-1 now
	created, err := store.Create("web-1")
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, sup.OnRunComplete(run))
	exists, err := store.Exists("web-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []string{"web-1"}, run.Hosts())

	cancel()
	waitHandles(t, handles)
}

func TestSupervisor_ExistingMarkerAdoptedForCleanup(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	// left by an earlier process of the same run
	_, err = store.Create("web-1")
	require.NoError(t, err)

	sink := newRecordingSink()
	sup := newTestSupervisor(t, store, sink, freePort(t), nil)
	run := NewRunState("run-1")

	handles := sup.OnQualifyingTaskStart(context.Background(), run, commandTask(), []string{"web-1"}, loopbackVars("web-1"))
	assert.Empty(t, handles)
	assert.Empty(t, sink.Starts())
	assert.Equal(t, []string{"web-1"}, run.Hosts())

	addr, ok := run.Address("web-1")
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1", addr)

	require.NoError(t, sup.OnRunComplete(run))
	exists, err := store.Exists("web-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSupervisor_TriggerDoesNotBlockOnUnreachableHosts(t *testing.T) {
	sink := newRecordingSink()
	sup := NewSupervisor(NewRegistry(NewMemoryStore(), nil), sink, SupervisorOptions{
		Worker: WorkerOptions{Dialer: &failingDialer{}, RetryInterval: time.Millisecond},
	})
	run := NewRunState("run-1")
	ctx, cancel := context.WithCancel(context.Background())

	start := time.Now()
	handles := sup.OnQualifyingTaskStart(ctx, run, commandTask(), []string{"a", "b", "c"}, domain.HostVars{
		"a": {"ansible_host": "10.0.0.1"},
		"b": {"ansible_host": "10.0.0.2"},
		"c": {"ansible_host": "10.0.0.3"},
	})
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, handles, 3)

	require.Eventually(t, func() bool { return sink.WaitCount() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	waitHandles(t, handles)
}
