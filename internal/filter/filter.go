// Package filter decides which changed paths are relevant for conflict detection.
package filter

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathFilter classifies a repository-relative path as ignored or relevant.
type PathFilter interface {
	// IsIgnored returns true if the path must be excluded from conflict detection.
	IsIgnored(path string) bool
}

// GlobFilter ignores paths matching any of a list of glob patterns.
// `*` matches within a path segment, `**` across segments and `?` a single character.
// It holds only immutable configuration and is safe for concurrent use.
type GlobFilter struct {
	patterns      []string
	caseSensitive bool
}

// NewGlobFilter creates a GlobFilter. Blank patterns are skipped and invalid
// ones are rejected.
func NewGlobFilter(patterns []string, caseSensitive bool) (*GlobFilter, error) {
	compiled := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
		if !caseSensitive {
			p = strings.ToLower(p)
		}
		compiled = append(compiled, p)
	}

	return &GlobFilter{
		patterns:      compiled,
		caseSensitive: caseSensitive,
	}, nil
}

// IsIgnored implements PathFilter.
func (f *GlobFilter) IsIgnored(path string) bool {
	if path == "" || len(f.patterns) == 0 {
		return false
	}
	if !f.caseSensitive {
		path = strings.ToLower(path)
	}

	for _, pattern := range f.patterns {
		// Patterns were validated in NewGlobFilter, so the error is always nil.
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the configured patterns.
func (f *GlobFilter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

// Apply returns the paths the filter does not ignore, preserving order.
// A nil filter ignores nothing. The result is never nil.
func Apply(f PathFilter, paths []string) []string {
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		if f != nil && f.IsIgnored(p) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// nopFilter ignores nothing.
type nopFilter struct{}

func (nopFilter) IsIgnored(string) bool { return false }

// None returns a PathFilter that ignores nothing.
func None() PathFilter {
	return nopFilter{}
}
