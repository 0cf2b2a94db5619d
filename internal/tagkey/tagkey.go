// Package tagkey compares tags the way Anki does: case-insensitively.
package tagkey

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s
func Fold(s string) string {
	// Casers keep state, so each call gets its own
	return cases.Fold().String(s)
}

// Key returns the comparison key of a tag
func Key(tag string, fold bool) string {
	if fold {
		return Fold(tag)
	}
	return tag
}

// Compare orders two strings by their folded form
func Compare(a, b string) int {
	return strings.Compare(Fold(a), Fold(b))
}

// Set is a set of tags keyed by their comparison key
type Set struct {
	fold bool
	keys map[string]struct{}
}

// NewSet builds a set from tags
func NewSet(fold bool, tags ...string) *Set {
	s := &Set{fold: fold, keys: make(map[string]struct{}, len(tags))}
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add inserts tag and reports whether it was new
func (s *Set) Add(tag string) bool {
	k := Key(tag, s.fold)
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

// Has reports whether an equivalent tag is present
func (s *Set) Has(tag string) bool {
	_, ok := s.keys[Key(tag, s.fold)]
	return ok
}

// Len returns the number of distinct tags
func (s *Set) Len() int { return len(s.keys) }
