package domain

// DeckID identifies a deck inside one collection
type DeckID int64

// NoteID identifies a note inside one collection
type NoteID int64

// CardID identifies a card inside one collection
type CardID int64

// Deck is a row of the host deck table. Name uses the host "::" delimiter.
type Deck struct {
	ID   DeckID `json:"id"`
	Name string `json:"name"`
}

// Card links a note to the deck it currently sits in
type Card struct {
	ID     CardID `json:"id"`
	NoteID NoteID `json:"note_id"`
	DeckID DeckID `json:"deck_id"`
}

// Snapshot is a read-only copy of everything a conversion run reads
type Snapshot struct {
	Decks []Deck              `json:"decks"`
	Cards []Card              `json:"cards"`
	Tags  map[NoteID][]string `json:"tags"`
}

// TagMutation describes the tag changes for a single note.
// Remove stays empty: conversion only ever adds tags.
type TagMutation struct {
	NoteID NoteID   `json:"note_id"`
	Add    []string `json:"add"`
	Remove []string `json:"remove,omitempty"`
}

// ApplyResult is what a sink reports after committing a batch
type ApplyResult struct {
	Applied []NoteID          `json:"applied"`
	Failed  map[NoteID]string `json:"failed,omitempty"`
}
