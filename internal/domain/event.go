package domain

// EventKind identifies a task runner event in the input stream
type EventKind string

const (
	EventPlaybookStart     EventKind = "playbook_start"
	EventPlayStart         EventKind = "play_start"
	EventTaskStart         EventKind = "task_start"
	EventCleanupTaskStart  EventKind = "cleanup_task_start"
	EventHandlerTaskStart  EventKind = "handler_task_start"
	EventRunnerOK          EventKind = "runner_ok"
	EventRunnerFailed      EventKind = "runner_failed"
	EventRunnerSkipped     EventKind = "runner_skipped"
	EventRunnerUnreachable EventKind = "runner_unreachable"
	EventItemOK            EventKind = "runner_item_ok"
	EventItemFailed        EventKind = "runner_item_failed"
	EventItemSkipped       EventKind = "runner_item_skipped"
	EventRunnerRetry       EventKind = "runner_retry"
	EventInclude           EventKind = "include"
	EventFileDiff          EventKind = "file_diff"
	EventNoHostsMatched    EventKind = "no_hosts_matched"
	EventNoHostsRemaining  EventKind = "no_hosts_remaining"
	EventStats             EventKind = "stats"
)

// Known reports whether k is an event kind the renderer understands
func (k EventKind) Known() bool {
	switch k {
	case EventPlaybookStart, EventPlayStart, EventTaskStart, EventCleanupTaskStart,
		EventHandlerTaskStart, EventRunnerOK, EventRunnerFailed, EventRunnerSkipped,
		EventRunnerUnreachable, EventItemOK, EventItemFailed, EventItemSkipped,
		EventRunnerRetry, EventInclude, EventFileDiff, EventNoHostsMatched,
		EventNoHostsRemaining, EventStats:
		return true
	}
	return false
}

// Event is one decoded entry of the runner event stream
type Event struct {
	Kind EventKind
	Line int // 1-based line number in the input stream

	Playbook     string
	Play         *Play
	Task         *Task
	Result       *Result
	IgnoreErrors bool
	Include      *Include
	Stats        []HostStats // sorted by host
}

// TaskArg is a single task argument, kept in input order
type TaskArg struct {
	Key   string
	Value string
}

// Task describes a task as announced by the runner
type Task struct {
	Name   string
	UUID   string
	Action string
	Args   []TaskArg
	NoLog  bool
	Path   string
	Loop   bool
}

// Play describes the play currently executing
type Play struct {
	Name     string
	Strategy string
	Hosts    []string
	HostVars HostVars
}

// HostVars maps host name to its scalar variables
type HostVars map[string]map[string]string

// Lookup returns the value of variable key for host
func (hv HostVars) Lookup(host, key string) (string, bool) {
	vars, ok := hv[host]
	if !ok {
		return "", false
	}
	v, ok := vars[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Result is the outcome of a task (or a loop item) on one host
type Result struct {
	Host          string
	DelegatedHost string
	Task          *Task

	// Raw is the JSON object reported by the runner
	Raw string

	Changed         bool
	Failed          bool
	Skipped         bool
	Exception       string
	Warnings        []string
	Diffs           []Diff
	Item            string
	Items           []Result
	Retries         int
	Attempts        int
	VerboseAlways   bool
	VerboseOverride bool
}

// Diff is a before/after pair attached to a changed result
type Diff struct {
	Prepared     string
	Before       string
	After        string
	BeforeHeader string
	AfterHeader  string
}

// Include describes a dynamically included file
type Include struct {
	File  string
	Hosts []string
}

// HostStats are the recap counters for one host
type HostStats struct {
	Host        string `json:"host"`
	OK          int    `json:"ok"`
	Changed     int    `json:"changed"`
	Unreachable int    `json:"unreachable"`
	Failures    int    `json:"failed"`
	Skipped     int    `json:"skipped,omitempty"`
	Rescued     int    `json:"rescued,omitempty"`
	Ignored     int    `json:"ignored,omitempty"`
}

// Status classifies a rendered task result
type Status string

const (
	StatusOK          Status = "ok"
	StatusChanged     Status = "changed"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
	StatusUnreachable Status = "unreachable"
	StatusIgnored     Status = "ignored"
	StatusRetry       Status = "retry"
	StatusIncluded    Status = "included"
)
