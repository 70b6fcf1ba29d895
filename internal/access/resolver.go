package access

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Permission actions checked by Level, lowest first.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Set is the union of permission patterns granted by a user's roles.
// Patterns have the form "resource:action" and may use glob wildcards,
// e.g. "roles:*" or "*:read".
type Set struct {
	patterns []string
}

// NewSet creates a set from permission patterns. Blank and invalid patterns
// are dropped.
func NewSet(patterns ...string) *Set {
	s := &Set{}
	s.Add(patterns...)
	return s
}

// Add grants more patterns.
func (s *Set) Add(patterns ...string) {
	for _, p := range patterns {
		p = normalize(p)
		if p == "" || !doublestar.ValidatePattern(p) || slices.Contains(s.patterns, p) {
			continue
		}
		s.patterns = append(s.patterns, p)
	}
}

// Patterns returns the granted patterns in insertion order.
func (s *Set) Patterns() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.patterns)
}

// Len returns the number of granted patterns.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// Allows reports whether any pattern matches permission. A nil set allows
// nothing.
func (s *Set) Allows(permission string) bool {
	if s == nil {
		return false
	}
	permission = normalize(permission)
	if permission == "" {
		return false
	}
	for _, p := range s.patterns {
		if matchPattern(p, permission) {
			return true
		}
	}
	return false
}

// Level resolves the access level for a resource from its read, write and
// delete permissions.
func (s *Set) Level(resource string) Level {
	switch {
	case s.Allows(resource + ":" + ActionDelete):
		return Admin
	case s.Allows(resource + ":" + ActionWrite):
		return ReadWrite
	case s.Allows(resource + ":" + ActionRead):
		return ReadOnly
	default:
		return None
	}
}

// Filter returns the permissions from candidates that the set allows.
func (s *Set) Filter(candidates []string) []string {
	result := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if s.Allows(c) {
			result = append(result, c)
		}
	}
	return result
}

func normalize(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// matchPattern checks a single pattern. A bare resource pattern such as
// "users" grants every action on it.
func matchPattern(pattern, permission string) bool {
	if pattern == permission || pattern == "*" {
		return true
	}
	if matched, _ := doublestar.Match(pattern, permission); matched {
		return true
	}
	if !strings.Contains(pattern, ":") {
		resource, _, _ := strings.Cut(permission, ":")
		if matched, _ := doublestar.Match(pattern, resource); matched {
			return true
		}
	}
	return false
}
