// Package engine runs a deck-to-tag conversion over a collection snapshot.
//
// A run reads everything first, computes the tags every note should carry,
// and returns only the tags that are missing, ordered by note id. Existing
// tags are never removed, so repeating a run over its own output yields no
// mutations.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/pbaille/decktags/internal/deckpath"
	"github.com/pbaille/decktags/internal/decktree"
	"github.com/pbaille/decktags/internal/domain"
	"github.com/pbaille/decktags/internal/resolver"
	"github.com/pbaille/decktags/internal/tagkey"
)

// Options configure a conversion
type Options struct {
	// Root restricts conversion to a deck and its subdecks
	Root deckpath.Path
	// TagPrefix is prepended to every generated tag
	TagPrefix string
	// FoldCase compares tags case-insensitively, like Anki
	FoldCase bool
	Observer Observer
}

// Engine converts deck placement into tag mutations. One Engine runs one
// conversion at a time.
type Engine struct {
	tagger   deckpath.Tagger
	opts     Options
	observer Observer

	phase Phase
	runID string
}

// New creates an Engine
func New(opts Options) (*Engine, error) {
	tagger, err := deckpath.NewTagger(opts.TagPrefix)
	if err != nil {
		return nil, fmt.Errorf("tagger: %w", err)
	}

	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Engine{
		tagger:   tagger,
		opts:     opts,
		observer: observer,
		phase:    PhaseIdle,
	}, nil
}

// Phase returns the phase the last run reached
func (e *Engine) Phase() Phase { return e.phase }

// RunID returns the id of the last run
func (e *Engine) RunID() string { return e.runID }

// Tagger returns the tagger runs use
func (e *Engine) Tagger() deckpath.Tagger { return e.tagger }

// Convert computes the tag mutations for snap. On any error no mutation is returned.
func (e *Engine) Convert(ctx context.Context, snap domain.Snapshot) ([]domain.TagMutation, error) {
	e.runID = uuid.New().String()

	muts, err := e.convert(ctx, snap)
	if err != nil {
		e.enter(PhaseFailed, Event{Err: err})
		return nil, err
	}
	return muts, nil
}

func (e *Engine) convert(ctx context.Context, snap domain.Snapshot) ([]domain.TagMutation, error) {
	// Scanning
	e.enter(PhaseScanning, Event{Decks: len(snap.Decks), Cards: len(snap.Cards)})
	index, err := decktree.Build(snap.Decks)
	if err != nil {
		return nil, fmt.Errorf("build deck index: %w", err)
	}
	for _, c := range snap.Cards {
		if !index.Has(c.DeckID) {
			return nil, fmt.Errorf("card %d of note %d: %w", c.ID, c.NoteID, &decktree.UnknownDeckError{DeckID: c.DeckID})
		}
	}
	res := resolver.New(index, e.tagger, resolver.Options{Root: e.opts.Root, FoldCase: e.opts.FoldCase})
	if err := res.CheckAll(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Resolving
	deckIDs := make(map[domain.NoteID][]domain.DeckID)
	for _, c := range snap.Cards {
		deckIDs[c.NoteID] = append(deckIDs[c.NoteID], c.DeckID)
	}
	e.enter(PhaseResolving, Event{Notes: len(deckIDs)})

	var cardless []domain.NoteID
	for id := range snap.Tags {
		if _, ok := deckIDs[id]; !ok {
			cardless = append(cardless, id)
		}
	}
	sortNoteIDs(cardless)
	for _, id := range cardless {
		e.observer.Observe(Event{
			RunID:   e.runID,
			Phase:   PhaseResolving,
			Warning: fmt.Sprintf("note %d has no cards", id),
		})
	}

	desired := make(map[domain.NoteID][]string, len(deckIDs))
	for id, dids := range deckIDs {
		tags, err := res.Resolve(dids)
		if err != nil {
			return nil, fmt.Errorf("note %d: %w", id, err)
		}
		if len(tags) > 0 {
			desired[id] = tags
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Diffing
	e.enter(PhaseDiffing, Event{Notes: len(desired)})
	toAdd := make(map[domain.NoteID][]string)
	for id, tags := range desired {
		current := tagkey.NewSet(e.opts.FoldCase, snap.Tags[id]...)
		var add []string
		for _, t := range tags {
			if !current.Has(t) {
				add = append(add, t)
			}
		}
		if len(add) > 0 {
			toAdd[id] = add
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Emitting
	e.enter(PhaseEmitting, Event{Mutations: len(toAdd)})
	ids := make([]domain.NoteID, 0, len(toAdd))
	for id := range toAdd {
		ids = append(ids, id)
	}
	sortNoteIDs(ids)

	muts := make([]domain.TagMutation, 0, len(ids))
	for _, id := range ids {
		muts = append(muts, domain.TagMutation{NoteID: id, Add: toAdd[id]})
	}

	e.enter(PhaseDone, Event{Notes: len(deckIDs), Mutations: len(muts)})
	return muts, nil
}

func sortNoteIDs(ids []domain.NoteID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func (e *Engine) enter(p Phase, ev Event) {
	e.phase = p
	ev.RunID = e.runID
	ev.Phase = p
	e.observer.Observe(ev)
}
