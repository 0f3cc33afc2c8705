package filter

import (
	"regexp"
	"strings"

	"github.com/vburojevic/hostlog/internal/domain"
)

// ExcludePatternFilter drops lines matching a regex pattern
type ExcludePatternFilter struct {
	pattern *regexp.Regexp
}

// NewExcludePatternFilter creates an exclusion filter from a pattern string
func NewExcludePatternFilter(pattern string) (*ExcludePatternFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &ExcludePatternFilter{pattern: re}, nil
}

// Match returns true if the line does NOT match the exclusion pattern
func (f *ExcludePatternFilter) Match(line *domain.RelayLine) bool {
	if f.pattern == nil {
		return true
	}
	return !f.pattern.MatchString(line.Text)
}

// ExcludeHostFilter drops every line relayed from the listed hosts
type ExcludeHostFilter struct {
	hosts []string
}

// NewExcludeHostFilter creates an exclusion filter for hosts. A trailing *
// matches any host with that prefix.
func NewExcludeHostFilter(hosts []string) *ExcludeHostFilter {
	return &ExcludeHostFilter{hosts: hosts}
}

// Match returns true if the line's host is NOT in the exclusion list
func (f *ExcludeHostFilter) Match(line *domain.RelayLine) bool {
	for _, h := range f.hosts {
		if prefix, ok := strings.CutSuffix(h, "*"); ok {
			if strings.HasPrefix(line.Host, prefix) {
				return false
			}
		} else if line.Host == h {
			return false
		}
	}
	return true
}
