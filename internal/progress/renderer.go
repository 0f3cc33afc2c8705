// Package progress turns runner events into human-readable progress output
// and drives log relaying for the tasks that qualify.
package progress

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/vburojevic/hostlog/internal/domain"
	"github.com/vburojevic/hostlog/internal/relay"
	"go.uber.org/zap"
)

// Display receives rendered output
type Display interface {
	Display(msg string) error
	Banner(title string) error
	Result(status domain.Status, host, msg string) error
	Warning(msg string) error
	Recap(stats []domain.HostStats) error
}

// Relay starts and cleans up log relays as tasks run
type Relay interface {
	OnQualifyingTaskStart(ctx context.Context, run *relay.RunState, task *domain.Task, hosts []string, vars domain.HostVars) []*relay.Handle
	OnRunComplete(run *relay.RunState) error
}

// Options control how much the renderer shows
type Options struct {
	Verbosity int
	// DisplayArgs prints task arguments in task banners
	DisplayArgs bool
	// DisplaySkipped prints skipped hosts and items
	DisplaySkipped bool
	Logger         *zap.Logger
}

// Renderer consumes the event stream of one run. It is not safe for
// concurrent use; events must be handled in stream order.
type Renderer struct {
	out   Display
	relay Relay
	run   *relay.RunState
	opts  Options
	log   *zap.Logger

	play       *domain.Play
	task       *domain.Task
	lastBanner string
}

// New creates a renderer. rl may be nil to render without relaying.
func New(out Display, rl Relay, run *relay.RunState, opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{out: out, relay: rl, run: run, opts: opts, log: logger}
}

// Handle renders a single event
func (r *Renderer) Handle(ctx context.Context, ev *domain.Event) error {
	switch ev.Kind {
	case domain.EventPlaybookStart:
		return r.playbookStart(ev)
	case domain.EventPlayStart:
		return r.playStart(ev)
	case domain.EventTaskStart:
		return r.taskStart(ctx, ev)
	case domain.EventCleanupTaskStart:
		return r.out.Banner(fmt.Sprintf("CLEANUP TASK [%s]", taskName(ev.Task)))
	case domain.EventHandlerTaskStart:
		return r.out.Banner(fmt.Sprintf("RUNNING HANDLER [%s]", taskName(ev.Task)))
	case domain.EventRunnerOK:
		return r.withResult(ev, r.runnerOK)
	case domain.EventRunnerFailed:
		return r.withResult(ev, func(res *domain.Result) error { return r.runnerFailed(res, ev.IgnoreErrors) })
	case domain.EventRunnerSkipped:
		return r.withResult(ev, r.runnerSkipped)
	case domain.EventRunnerUnreachable:
		return r.withResult(ev, r.runnerUnreachable)
	case domain.EventItemOK:
		return r.withResult(ev, r.itemOK)
	case domain.EventItemFailed:
		return r.withResult(ev, r.itemFailed)
	case domain.EventItemSkipped:
		return r.withResult(ev, r.itemSkipped)
	case domain.EventRunnerRetry:
		return r.withResult(ev, r.retry)
	case domain.EventFileDiff:
		return r.withResult(ev, r.fileDiff)
	case domain.EventInclude:
		return r.include(ev)
	case domain.EventNoHostsMatched:
		return r.out.Display("skipping: no hosts matched")
	case domain.EventNoHostsRemaining:
		return r.out.Banner("NO MORE HOSTS LEFT")
	case domain.EventStats:
		return r.stats(ev)
	}
	r.log.Debug("ignoring event", zap.String("event", string(ev.Kind)), zap.Int("line", ev.Line))
	return nil
}

func (r *Renderer) playbookStart(ev *domain.Event) error {
	if r.opts.Verbosity > 1 {
		return r.out.Banner("PLAYBOOK: " + path.Base(ev.Playbook))
	}
	return nil
}

func (r *Renderer) playStart(ev *domain.Event) error {
	r.play = ev.Play
	if r.play == nil {
		r.play = &domain.Play{Strategy: "linear"}
	}
	name := strings.TrimSpace(r.play.Name)
	if name == "" {
		return r.out.Banner("PLAY")
	}
	return r.out.Banner(fmt.Sprintf("PLAY [%s]", name))
}

func (r *Renderer) taskStart(ctx context.Context, ev *domain.Event) error {
	if ev.Task == nil {
		return nil
	}
	r.task = ev.Task
	if !r.freeStrategy() {
		if err := r.taskBanner(ev.Task); err != nil {
			return err
		}
	}
	if r.relay != nil && r.play != nil {
		r.relay.OnQualifyingTaskStart(ctx, r.run, ev.Task, r.play.Hosts, r.play.HostVars)
	}
	return nil
}

func (r *Renderer) taskBanner(task *domain.Task) error {
	args := ""
	if !task.NoLog && r.opts.DisplayArgs && len(task.Args) > 0 {
		pairs := make([]string, 0, len(task.Args))
		for _, a := range task.Args {
			pairs = append(pairs, a.Key+"="+a.Value)
		}
		args = " " + strings.Join(pairs, ", ")
	}
	if err := r.out.Banner(fmt.Sprintf("TASK [%s%s]", taskName(task), args)); err != nil {
		return err
	}
	r.lastBanner = task.UUID
	if r.opts.Verbosity >= 2 && task.Path != "" {
		return r.out.Display("task path: " + task.Path)
	}
	return nil
}

func (r *Renderer) freeStrategy() bool {
	return r.play != nil && r.play.Strategy == "free"
}

// lazyBanner prints the banner of a result's task under the free strategy,
// where hosts run ahead of each other and task_start says little
func (r *Renderer) lazyBanner(res *domain.Result) error {
	if !r.freeStrategy() || res.Task == nil || r.lastBanner == res.Task.UUID {
		return nil
	}
	return r.taskBanner(res.Task)
}

func (r *Renderer) withResult(ev *domain.Event, fn func(*domain.Result) error) error {
	if ev.Result == nil {
		r.log.Debug("result event without result", zap.String("event", string(ev.Kind)), zap.Int("line", ev.Line))
		return nil
	}
	res := ev.Result
	if res.Task == nil {
		res.Task = r.task
	}
	return fn(res)
}

func (r *Renderer) runnerOK(res *domain.Result) error {
	if err := r.lazyBanner(res); err != nil {
		return err
	}
	if isInclude(res) {
		return nil
	}
	status := domain.StatusOK
	if changed(res) {
		status = domain.StatusChanged
	}
	msg := fmt.Sprintf("%s: %s", status, hostLabel(res))

	if err := r.warnings(res); err != nil {
		return err
	}
	if looped(res) {
		return r.items(res)
	}
	if r.shouldVerbose(res, 0) {
		msg += " => " + r.dumpResult(res)
	}
	return r.out.Result(status, res.Host, msg)
}

func (r *Renderer) runnerFailed(res *domain.Result, ignoreErrors bool) error {
	if err := r.lazyBanner(res); err != nil {
		return err
	}
	if err := r.exception(res); err != nil {
		return err
	}
	if err := r.warnings(res); err != nil {
		return err
	}
	if looped(res) {
		if err := r.items(res); err != nil {
			return err
		}
	} else {
		msg := fmt.Sprintf("fatal: %s: FAILED! => %s", hostLabel(res), r.dumpResult(res))
		if err := r.out.Result(domain.StatusFailed, res.Host, msg); err != nil {
			return err
		}
	}
	if ignoreErrors {
		return r.out.Result(domain.StatusIgnored, res.Host, "...ignoring")
	}
	return nil
}

func (r *Renderer) runnerSkipped(res *domain.Result) error {
	if !r.opts.DisplaySkipped {
		return nil
	}
	if err := r.lazyBanner(res); err != nil {
		return err
	}
	if looped(res) {
		return r.items(res)
	}
	msg := fmt.Sprintf("skipping: [%s]", res.Host)
	if r.shouldVerbose(res, 0) {
		msg += " => " + r.dumpResult(res)
	}
	return r.out.Result(domain.StatusSkipped, res.Host, msg)
}

func (r *Renderer) runnerUnreachable(res *domain.Result) error {
	if err := r.lazyBanner(res); err != nil {
		return err
	}
	msg := fmt.Sprintf("fatal: %s: UNREACHABLE! => %s", hostLabel(res), r.dumpResult(res))
	return r.out.Result(domain.StatusUnreachable, res.Host, msg)
}

// items renders the per-item results of a looped task
func (r *Renderer) items(res *domain.Result) error {
	for i := range res.Items {
		item := &res.Items[i]
		if item.Task == nil {
			item.Task = res.Task
		}
		var err error
		switch {
		case item.Failed:
			err = r.itemFailed(item)
		case item.Skipped:
			err = r.itemSkipped(item)
		default:
			err = r.itemOK(item)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) itemOK(res *domain.Result) error {
	if isInclude(res) {
		return nil
	}
	status := domain.StatusOK
	if changed(res) {
		status = domain.StatusChanged
	}
	msg := fmt.Sprintf("%s: %s => (item=%s)", status, hostLabel(res), res.Item)
	if r.shouldVerbose(res, 0) {
		msg += " => " + r.dumpResult(res)
	}
	return r.out.Result(status, res.Host, msg)
}

func (r *Renderer) itemFailed(res *domain.Result) error {
	if err := r.exception(res); err != nil {
		return err
	}
	if err := r.warnings(res); err != nil {
		return err
	}
	msg := fmt.Sprintf("failed: %s (item=%s) => %s", hostLabel(res), res.Item, r.dumpResult(res))
	return r.out.Result(domain.StatusFailed, res.Host, msg)
}

func (r *Renderer) itemSkipped(res *domain.Result) error {
	if !r.opts.DisplaySkipped {
		return nil
	}
	msg := fmt.Sprintf("skipping: [%s] => (item=%s)", res.Host, res.Item)
	if r.shouldVerbose(res, 0) {
		msg += " => " + r.dumpResult(res)
	}
	return r.out.Result(domain.StatusSkipped, res.Host, msg)
}

func (r *Renderer) retry(res *domain.Result) error {
	msg := fmt.Sprintf("FAILED - RETRYING: %s (%d retries left).", taskName(res.Task), res.Retries-res.Attempts)
	if r.shouldVerbose(res, 2) {
		msg += " Result was: " + r.dumpResult(res)
	}
	return r.out.Result(domain.StatusRetry, res.Host, msg)
}

func (r *Renderer) fileDiff(res *domain.Result) error {
	if looped(res) {
		for _, item := range res.Items {
			if item.Changed && len(item.Diffs) > 0 {
				if diff := renderDiffs(item.Diffs); diff != "" {
					if err := r.out.Display(diff); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if !res.Changed || len(res.Diffs) == 0 {
		return nil
	}
	if diff := renderDiffs(res.Diffs); diff != "" {
		return r.out.Display(diff)
	}
	return nil
}

func (r *Renderer) include(ev *domain.Event) error {
	if ev.Include == nil {
		return nil
	}
	msg := fmt.Sprintf("included: %s for %s", ev.Include.File, strings.Join(ev.Include.Hosts, ", "))
	return r.out.Result(domain.StatusIncluded, "", msg)
}

func (r *Renderer) stats(ev *domain.Event) error {
	if err := r.out.Banner("PLAY RECAP"); err != nil {
		return err
	}
	if err := r.out.Recap(ev.Stats); err != nil {
		return err
	}
	if r.relay == nil {
		return nil
	}
	if err := r.relay.OnRunComplete(r.run); err != nil {
		r.log.Warn("relay markers not fully cleaned up", zap.Error(err))
	}
	return nil
}

func (r *Renderer) exception(res *domain.Result) error {
	if res.Exception == "" {
		return nil
	}
	var msg string
	if r.opts.Verbosity < 3 {
		lines := strings.Split(strings.TrimSpace(res.Exception), "\n")
		msg = "An exception occurred during task execution. To see the full traceback, use -vvv. " +
			"The error was: " + lines[len(lines)-1]
	} else {
		msg = "An exception occurred during task execution. The full traceback is:\n" + res.Exception
	}
	return r.out.Display(msg)
}

func (r *Renderer) warnings(res *domain.Result) error {
	for _, w := range res.Warnings {
		if err := r.out.Warning(w); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) shouldVerbose(res *domain.Result, level int) bool {
	return (r.opts.Verbosity > level || res.VerboseAlways) && !res.VerboseOverride
}

func taskName(task *domain.Task) string {
	if task == nil {
		return ""
	}
	return strings.TrimSpace(task.Name)
}

func hostLabel(res *domain.Result) string {
	if res.DelegatedHost != "" {
		return fmt.Sprintf("[%s -> %s]", res.Host, res.DelegatedHost)
	}
	return fmt.Sprintf("[%s]", res.Host)
}

func isInclude(res *domain.Result) bool {
	return res.Task != nil && (res.Task.Action == "include" || res.Task.Action == "include_role")
}

// changed ignores the changed flag of debug tasks, which never change anything
func changed(res *domain.Result) bool {
	return res.Changed && (res.Task == nil || res.Task.Action != "debug")
}

func looped(res *domain.Result) bool {
	return res.Task != nil && res.Task.Loop && len(res.Items) > 0
}
