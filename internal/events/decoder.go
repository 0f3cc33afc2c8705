// Package events decodes the task runner's NDJSON event stream.
package events

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/vburojevic/hostlog/internal/domain"
)

// MaxLineBytes bounds a single event line; task results can be large
const MaxLineBytes = 16 * 1024 * 1024

// ErrUnknownEvent is wrapped by decode errors for well-formed events of a kind
// the renderer does not handle
var ErrUnknownEvent = errors.New("unknown event")

// DecodeError reports a line that could not be turned into an event
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("event line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder reads events one line at a time
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return &Decoder{sc: sc}
}

// Next returns the next event. Blank lines are skipped. A *DecodeError leaves
// the decoder usable; io.EOF marks the end of the stream.
func (d *Decoder) Next() (*domain.Event, error) {
	for d.sc.Scan() {
		d.line++
		line := bytes.TrimSpace(d.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		return Parse(line, d.line)
	}
	if err := d.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("event line %d longer than %d bytes: %w", d.line+1, MaxLineBytes, err)
		}
		return nil, err
	}
	return nil, io.EOF
}

// Parse decodes a single NDJSON event line
func Parse(line []byte, lineNo int) (*domain.Event, error) {
	if !gjson.ValidBytes(line) {
		return nil, &DecodeError{Line: lineNo, Err: errors.New("invalid JSON")}
	}
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return nil, &DecodeError{Line: lineNo, Err: errors.New("event is not an object")}
	}

	kind := domain.EventKind(root.Get("event").String())
	if kind == "" {
		return nil, &DecodeError{Line: lineNo, Err: errors.New(`missing "event" field`)}
	}
	if !kind.Known() {
		return nil, &DecodeError{Line: lineNo, Err: fmt.Errorf("%w %q", ErrUnknownEvent, kind)}
	}

	ev := &domain.Event{
		Kind:         kind,
		Line:         lineNo,
		Playbook:     root.Get("playbook").String(),
		IgnoreErrors: root.Get("ignore_errors").Bool(),
	}
	if p := root.Get("play"); p.IsObject() {
		ev.Play = parsePlay(p)
	}
	if t := root.Get("task"); t.IsObject() {
		ev.Task = parseTask(t)
	}
	if r := root.Get("result"); r.IsObject() {
		res := parseResult(r, root.Get("host").String(), ev.Task)
		if d := root.Get("delegated_host").String(); d != "" {
			res.DelegatedHost = d
		}
		ev.Result = &res
	}

	switch kind {
	case domain.EventInclude:
		ev.Include = &domain.Include{
			File:  root.Get("file").String(),
			Hosts: stringList(root.Get("hosts")),
		}
	case domain.EventStats:
		ev.Stats = parseStats(root.Get("stats"))
	}
	return ev, nil
}

func parsePlay(p gjson.Result) *domain.Play {
	play := &domain.Play{
		Name:     p.Get("name").String(),
		Strategy: p.Get("strategy").String(),
		Hosts:    stringList(p.Get("hosts")),
		HostVars: domain.HostVars{},
	}
	if play.Strategy == "" {
		play.Strategy = "linear"
	}
	p.Get("hostvars").ForEach(func(host, vars gjson.Result) bool {
		scalars := map[string]string{}
		vars.ForEach(func(k, v gjson.Result) bool {
			switch v.Type {
			case gjson.String, gjson.Number, gjson.True, gjson.False:
				scalars[k.String()] = v.String()
			}
			return true
		})
		play.HostVars[host.String()] = scalars
		return true
	})
	return play
}

func parseTask(t gjson.Result) *domain.Task {
	task := &domain.Task{
		Name:   t.Get("name").String(),
		UUID:   t.Get("uuid").String(),
		Action: t.Get("action").String(),
		NoLog:  t.Get("no_log").Bool(),
		Path:   t.Get("path").String(),
	}
	loop := t.Get("loop")
	task.Loop = loop.Exists() && loop.Type != gjson.Null && loop.Type != gjson.False
	t.Get("args").ForEach(func(k, v gjson.Result) bool {
		task.Args = append(task.Args, domain.TaskArg{Key: k.String(), Value: scalarOrRaw(v)})
		return true
	})
	return task
}

func parseResult(r gjson.Result, host string, task *domain.Task) domain.Result {
	res := domain.Result{
		Host:            host,
		DelegatedHost:   r.Get("_ansible_delegated_vars.ansible_host").String(),
		Task:            task,
		Raw:             r.Raw,
		Changed:         r.Get("changed").Bool(),
		Failed:          r.Get("failed").Bool(),
		Skipped:         r.Get("skipped").Bool(),
		Exception:       r.Get("exception").String(),
		Warnings:        stringList(r.Get("warnings")),
		Diffs:           parseDiffs(r.Get("diff")),
		Retries:         int(r.Get("retries").Int()),
		Attempts:        int(r.Get("attempts").Int()),
		VerboseAlways:   r.Get("_ansible_verbose_always").Exists(),
		VerboseOverride: r.Get("_ansible_verbose_override").Exists(),
	}
	if label := r.Get("_ansible_item_label"); label.Exists() {
		res.Item = scalarOrRaw(label)
	} else if item := r.Get("item"); item.Exists() {
		res.Item = scalarOrRaw(item)
	}
	r.Get("results").ForEach(func(_, item gjson.Result) bool {
		if item.IsObject() {
			res.Items = append(res.Items, parseResult(item, host, task))
		}
		return true
	})
	return res
}

func parseDiffs(d gjson.Result) []domain.Diff {
	var diffs []domain.Diff
	add := func(v gjson.Result) {
		switch {
		case v.Type == gjson.String:
			diffs = append(diffs, domain.Diff{Prepared: v.String()})
		case v.IsObject():
			diffs = append(diffs, domain.Diff{
				Prepared:     v.Get("prepared").String(),
				Before:       v.Get("before").String(),
				After:        v.Get("after").String(),
				BeforeHeader: v.Get("before_header").String(),
				AfterHeader:  v.Get("after_header").String(),
			})
		}
	}
	if d.IsArray() {
		d.ForEach(func(_, v gjson.Result) bool {
			add(v)
			return true
		})
	} else if d.Exists() {
		add(d)
	}
	return diffs
}

func parseStats(s gjson.Result) []domain.HostStats {
	var stats []domain.HostStats
	s.ForEach(func(host, c gjson.Result) bool {
		stats = append(stats, domain.HostStats{
			Host:        host.String(),
			OK:          int(c.Get("ok").Int()),
			Changed:     int(c.Get("changed").Int()),
			Unreachable: int(c.Get("unreachable").Int()),
			Failures:    int(c.Get("failures").Int()),
			Skipped:     int(c.Get("skipped").Int()),
			Rescued:     int(c.Get("rescued").Int()),
			Ignored:     int(c.Get("ignored").Int()),
		})
		return true
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Host < stats[j].Host })
	return stats
}

func stringList(v gjson.Result) []string {
	if !v.IsArray() {
		if v.Type == gjson.String {
			return []string{v.String()}
		}
		return nil
	}
	var out []string
	v.ForEach(func(_, s gjson.Result) bool {
		out = append(out, s.String())
		return true
	})
	return out
}

func scalarOrRaw(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	return v.Raw
}
