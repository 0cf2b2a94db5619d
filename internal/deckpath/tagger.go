package deckpath

import (
	"fmt"
	"strings"
	"unicode"
)

// Tagger turns paths into tags, optionally under a fixed prefix
type Tagger struct {
	prefix string
}

// NewTagger validates prefix and returns a Tagger using it
func NewTagger(prefix string) (Tagger, error) {
	if strings.IndexFunc(prefix, unicode.IsSpace) >= 0 {
		return Tagger{}, fmt.Errorf("tag prefix %q contains whitespace", prefix)
	}
	if strings.Contains(prefix, Delimiter) {
		return Tagger{}, fmt.Errorf("tag prefix %q contains %q", prefix, Delimiter)
	}
	return Tagger{prefix: prefix}, nil
}

// Prefix returns the configured prefix
func (t Tagger) Prefix() string { return t.prefix }

// Tag returns the tag for p
func (t Tagger) Tag(p Path) string {
	if t.prefix == "" {
		return ToTag(p)
	}
	return t.prefix + TagSeparator + ToTag(p)
}
