package filter

import (
	"regexp"

	"github.com/vburojevic/hostlog/internal/domain"
)

// RegexFilter keeps lines whose text matches a pattern
type RegexFilter struct {
	pattern *regexp.Regexp
}

// NewRegexFilter creates a regex filter from a pattern string
func NewRegexFilter(pattern string) (*RegexFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexFilter{pattern: re}, nil
}

// Match returns true if the line text matches the pattern
func (f *RegexFilter) Match(line *domain.RelayLine) bool {
	if f.pattern == nil {
		return true
	}
	return f.pattern.MatchString(line.Text)
}
