// Package decktree indexes a collection's flat deck table by deck id and
// regroups it into the tree its "::" names describe.
package decktree

import (
	"fmt"
	"sort"

	"github.com/pbaille/decktags/internal/deckpath"
	"github.com/pbaille/decktags/internal/domain"
)

// UnknownDeckError reports a deck id missing from the deck table
type UnknownDeckError struct {
	DeckID domain.DeckID
}

func (e *UnknownDeckError) Error() string {
	return fmt.Sprintf("unknown deck id %d", e.DeckID)
}

// Index maps deck ids to their parsed paths
type Index struct {
	paths map[domain.DeckID]deckpath.Path
}

// Build parses every deck name of the table
func Build(decks []domain.Deck) (*Index, error) {
	paths := make(map[domain.DeckID]deckpath.Path, len(decks))

	for _, d := range decks {
		if _, dup := paths[d.ID]; dup {
			return nil, fmt.Errorf("duplicate deck id %d", d.ID)
		}
		p, err := deckpath.Parse(d.Name)
		if err != nil {
			return nil, fmt.Errorf("deck %d: %w", d.ID, err)
		}
		paths[d.ID] = p
	}

	return &Index{paths: paths}, nil
}

// Len returns the number of indexed decks
func (ix *Index) Len() int { return len(ix.paths) }

// Has reports whether id is in the deck table
func (ix *Index) Has(id domain.DeckID) bool {
	_, ok := ix.paths[id]
	return ok
}

// IDs returns all deck ids in ascending order
func (ix *Index) IDs() []domain.DeckID {
	ids := make([]domain.DeckID, 0, len(ix.paths))
	for id := range ix.paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PathOf returns the full path of a deck
func (ix *Index) PathOf(id domain.DeckID) (deckpath.Path, error) {
	p, ok := ix.paths[id]
	if !ok {
		return deckpath.Path{}, &UnknownDeckError{DeckID: id}
	}
	return p, nil
}

// AncestorsOf returns every level the deck implies, root first, the deck itself last
func (ix *Index) AncestorsOf(id domain.DeckID) ([]deckpath.Path, error) {
	p, err := ix.PathOf(id)
	if err != nil {
		return nil, err
	}
	return p.Prefixes(), nil
}
