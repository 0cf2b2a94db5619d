package store

import (
	"sort"
	"strings"

	"github.com/pbaille/decktags/internal/domain"
	"github.com/pbaille/decktags/internal/tagkey"
)

// SplitTags parses the space separated tags column of a note
func SplitTags(raw string) []string {
	return strings.Fields(raw)
}

// JoinTags renders tags the way Anki stores them: space separated and padded
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}

// MergeTags appends the tags of add missing from current, compared
// case-insensitively when fold is set. current keeps its order.
func MergeTags(current, add []string, fold bool) []string {
	seen := tagkey.NewSet(fold, current...)
	out := append([]string(nil), current...)
	for _, t := range add {
		if seen.Add(t) {
			out = append(out, t)
		}
	}
	return out
}

func sortDecks(decks []domain.Deck) {
	sort.Slice(decks, func(i, j int) bool { return decks[i].ID < decks[j].ID })
}
