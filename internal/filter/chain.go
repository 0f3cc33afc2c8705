// Package filter decides which relayed lines reach the display.
package filter

import (
	"github.com/vburojevic/hostlog/internal/domain"
)

// Filter determines if a relayed line should be shown
type Filter interface {
	// Match returns true if the line passes the filter
	Match(line *domain.RelayLine) bool
}

// Chain combines multiple filters (all must pass)
type Chain struct {
	filters []Filter
}

// NewChain creates a filter chain from multiple filters
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Match returns true only if all filters pass
func (c *Chain) Match(line *domain.RelayLine) bool {
	for _, f := range c.filters {
		if !f.Match(line) {
			return false
		}
	}
	return true
}

// Add appends a filter to the chain
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Len returns the number of filters in the chain
func (c *Chain) Len() int {
	return len(c.filters)
}
