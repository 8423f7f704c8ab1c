package workspace

import (
	"fmt"

	"github.com/gobwas/glob"
)

// IgnoreMatcher filters workspace paths out of snapshots and listings.
// Patterns are glob expressions matched against the full relative path,
// so ".git/**" hides a directory and "*.log" hides matching files at any
// depth.
type IgnoreMatcher struct {
	patterns []glob.Glob
}

// NewIgnoreMatcher compiles the given glob patterns. An invalid pattern is
// reported rather than silently skipped.
func NewIgnoreMatcher(patterns []string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

// Ignored reports whether the relative path matches any ignore pattern.
func (m *IgnoreMatcher) Ignored(relPath string) bool {
	for _, g := range m.patterns {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}
