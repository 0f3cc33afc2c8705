package progress

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/vburojevic/hostlog/internal/domain"
)

// DiffContext is the number of unchanged lines around each hunk
const DiffContext = 3

func renderDiffs(diffs []domain.Diff) string {
	var parts []string
	for _, d := range diffs {
		if s := renderDiff(d); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func renderDiff(d domain.Diff) string {
	if d.Prepared != "" {
		return strings.TrimRight(d.Prepared, "\n")
	}
	if d.Before == d.After {
		return ""
	}
	from, to := "before", "after"
	if d.BeforeHeader != "" {
		from = "before: " + d.BeforeHeader
	}
	if d.AfterHeader != "" {
		to = "after: " + d.AfterHeader
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(d.Before),
		B:        difflib.SplitLines(d.After),
		FromFile: from,
		ToFile:   to,
		Context:  DiffContext,
	})
	if err != nil {
		return ""
	}
	return strings.TrimRight(out, "\n")
}
