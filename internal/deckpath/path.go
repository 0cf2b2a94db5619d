// Package deckpath models hierarchical deck names and turns them into flat tags.
package deckpath

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Delimiter separates levels in a host deck name
const Delimiter = "::"

// TagSeparator separates levels inside a generated tag
const TagSeparator = "/"

// MalformedPathError reports a deck name that cannot be split into levels
type MalformedPathError struct {
	Raw    string
	Reason string
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed deck path %q: %s", e.Raw, e.Reason)
}

// Path is an immutable root-to-leaf sequence of deck names
type Path struct {
	segments []string
}

// Parse splits a host deck name into its levels
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, &MalformedPathError{Raw: raw, Reason: "empty name"}
	}

	parts := strings.Split(raw, Delimiter)
	for i, p := range parts {
		if p == "" {
			return Path{}, &MalformedPathError{
				Raw:    raw,
				Reason: fmt.Sprintf("empty segment at level %d", i+1),
			}
		}
	}

	return Path{segments: parts}, nil
}

// MustParse is Parse for literals known to be valid
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of levels
func (p Path) Len() int { return len(p.segments) }

// IsZero reports whether p is the empty path
func (p Path) IsZero() bool { return len(p.segments) == 0 }

// Segments returns a copy of the levels
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Leaf returns the last level
func (p Path) Leaf() string {
	if p.IsZero() {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns p without its last level
func (p Path) Parent() Path {
	if p.Len() <= 1 {
		return Path{}
	}
	return Path{segments: p.segments[:len(p.segments)-1]}
}

// String returns the host form of the path
func (p Path) String() string {
	return strings.Join(p.segments, Delimiter)
}

// Equal reports whether both paths have the same levels
func (p Path) Equal(o Path) bool {
	if len(p.segments) != len(o.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is p itself or one of its ancestors
func (p Path) HasPrefix(prefix Path) bool {
	if prefix.Len() > p.Len() {
		return false
	}
	for i := range prefix.segments {
		if p.segments[i] != prefix.segments[i] {
			return false
		}
	}
	return true
}

// Prefixes returns every non-empty prefix of p, shortest first
func (p Path) Prefixes() []Path {
	out := make([]Path, 0, len(p.segments))
	for i := 1; i <= len(p.segments); i++ {
		// Full slice expression so appends on a prefix never touch p
		out = append(out, Path{segments: p.segments[:i:i]})
	}
	return out
}

// ToTag converts a path into a single tag token.
// Every segment is escaped so that TagSeparator, whitespace and "::" never
// appear inside it; two different paths therefore never share a tag.
func ToTag(p Path) string {
	escaped := make([]string, len(p.segments))
	for i, s := range p.segments {
		escaped[i] = escapeSegment(s)
	}
	return strings.Join(escaped, TagSeparator)
}

func escapeSegment(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for _, r := range s {
		switch {
		case r == ' ':
			sb.WriteByte('_')
		case r == '_', r == '%', r == '/', r == '"':
			writeEscaped(&sb, r)
		case unicode.IsSpace(r):
			writeEscaped(&sb, r)
		default:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

func writeEscaped(sb *strings.Builder, r rune) {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	for _, b := range buf[:n] {
		fmt.Fprintf(sb, "%%%02X", b)
	}
}
