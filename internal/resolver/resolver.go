// Package resolver computes the hierarchy tags a note should carry from the
// decks its cards sit in.
//
// A note whose cards live in several decks gets the union of every deck's
// levels; no branch is preferred over another.
package resolver

import (
	"fmt"
	"sort"

	"github.com/pbaille/decktags/internal/deckpath"
	"github.com/pbaille/decktags/internal/decktree"
	"github.com/pbaille/decktags/internal/domain"
	"github.com/pbaille/decktags/internal/tagkey"
)

// TagCollisionError reports two different paths that produced the same tag
type TagCollisionError struct {
	Tag    string
	First  deckpath.Path
	Second deckpath.Path
}

func (e *TagCollisionError) Error() string {
	return fmt.Sprintf("tag %q produced by both %q and %q", e.Tag, e.First, e.Second)
}

// Options tune which decks count and how tags compare
type Options struct {
	// Root limits resolution to decks at or below this path. Zero means all decks.
	Root deckpath.Path
	// FoldCase treats tags differing only by case as the same tag
	FoldCase bool
}

// Resolver turns deck ids into hierarchy tags. It is not safe for concurrent use.
type Resolver struct {
	index  *decktree.Index
	tagger deckpath.Tagger
	opts   Options

	owners map[string]deckpath.Path // tag key -> path that produced it
	cache  map[domain.DeckID][]entry
}

type entry struct {
	path deckpath.Path
	tag  string
}

// New creates a Resolver over index
func New(index *decktree.Index, tagger deckpath.Tagger, opts Options) *Resolver {
	return &Resolver{
		index:  index,
		tagger: tagger,
		opts:   opts,
		owners: make(map[string]deckpath.Path),
		cache:  make(map[domain.DeckID][]entry),
	}
}

// InScope reports whether a deck falls under the configured root
func (r *Resolver) InScope(id domain.DeckID) (bool, error) {
	p, err := r.index.PathOf(id)
	if err != nil {
		return false, err
	}
	return r.opts.Root.IsZero() || p.HasPrefix(r.opts.Root), nil
}

// Resolve returns the sorted, de-duplicated tags implied by deckIDs.
// Decks outside the root contribute nothing.
func (r *Resolver) Resolve(deckIDs []domain.DeckID) ([]string, error) {
	seen := tagkey.NewSet(r.opts.FoldCase)
	var tags []string

	for _, id := range deckIDs {
		entries, err := r.deckTags(id)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if seen.Add(e.tag) {
				tags = append(tags, e.tag)
			}
		}
	}

	sort.Strings(tags)
	return tags, nil
}

// CheckAll resolves every in-scope deck of the index once, so collisions
// surface before any note is looked at.
func (r *Resolver) CheckAll() error {
	for _, id := range r.index.IDs() {
		if _, err := r.deckTags(id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) deckTags(id domain.DeckID) ([]entry, error) {
	if cached, ok := r.cache[id]; ok {
		return cached, nil
	}

	inScope, err := r.InScope(id)
	if err != nil {
		return nil, err
	}

	var entries []entry
	if inScope {
		ancestors, err := r.index.AncestorsOf(id)
		if err != nil {
			return nil, err
		}
		for _, p := range ancestors {
			tag := r.tagger.Tag(p)
			if err := r.claim(tag, p); err != nil {
				return nil, err
			}
			entries = append(entries, entry{path: p, tag: tag})
		}
	}

	r.cache[id] = entries
	return entries, nil
}

// claim records that p owns tag, failing if another path already does
func (r *Resolver) claim(tag string, p deckpath.Path) error {
	k := tagkey.Key(tag, r.opts.FoldCase)
	if owner, ok := r.owners[k]; ok {
		if !owner.Equal(p) {
			return &TagCollisionError{Tag: tag, First: owner, Second: p}
		}
		return nil
	}
	r.owners[k] = p
	return nil
}
