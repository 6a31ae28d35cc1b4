// Package filter decides which discovered tests are skipped before dispatch.
package filter

import (
	"strings"

	"github.com/lightci/standalone-runner/discovery"
)

// Blocklist excludes test identifiers by substring match. Patterns are
// injected at construction so the filter carries no global state.
type Blocklist struct {
	patterns []string
}

// NewBlocklist creates a blocklist from the given patterns. A nil or empty
// pattern list matches nothing.
func NewBlocklist(patterns []string) *Blocklist {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &Blocklist{patterns: cleaned}
}

// Match reports whether id contains any blocklist entry as a substring.
func (b *Blocklist) Match(id discovery.TestID) bool {
	for _, p := range b.patterns {
		if strings.Contains(string(id), p) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (b *Blocklist) Patterns() []string {
	out := make([]string, len(b.patterns))
	copy(out, b.patterns)
	return out
}
