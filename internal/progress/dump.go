package progress

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/vburojevic/hostlog/internal/domain"
)

const internalKeyPrefix = "_ansible"

// dumpResult renders a result object for display, without the keys the
// renderer shows separately or that only matter to the runner
func (r *Renderer) dumpResult(res *domain.Result) string {
	raw := gjson.Parse(res.Raw)
	if !raw.IsObject() {
		return "{}"
	}
	action := ""
	if res.Task != nil {
		action = res.Task.Action
	}

	var b strings.Builder
	b.WriteByte('{')
	first := true
	raw.ForEach(func(k, v gjson.Result) bool {
		if r.dropKey(k.String(), action) {
			return true
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(k.Raw)
		b.WriteByte(':')
		b.WriteString(v.Raw)
		return true
	})
	b.WriteByte('}')

	opts := &pretty.Options{Width: 80, Prefix: "", Indent: "    ", SortKeys: true}
	out := pretty.PrettyOptions([]byte(b.String()), opts)
	if r.opts.Verbosity <= 2 && !res.VerboseAlways {
		out = pretty.Ugly(out)
	}
	return strings.TrimSpace(string(out))
}

func (r *Renderer) dropKey(key, action string) bool {
	switch {
	case strings.HasPrefix(key, internalKeyPrefix):
		return true
	case key == "exception", key == "warnings":
		return true
	case key == "invocation":
		return r.opts.Verbosity < 3 || action == "debug"
	case key == "diff":
		return r.opts.Verbosity < 3
	case key == "changed":
		return action == "debug"
	}
	return false
}
