package decktree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/decktags/internal/deckpath"
	"github.com/pbaille/decktags/internal/domain"
)

func sampleDecks() []domain.Deck {
	return []domain.Deck{
		{ID: 1, Name: "Language"},
		{ID: 2, Name: "Language::German"},
		{ID: 3, Name: "Language::German::Verbs"},
		{ID: 4, Name: "Language::French"},
		{ID: 5, Name: "Default"},
	}
}

func TestBuild(t *testing.T) {
	ix, err := Build(sampleDecks())
	require.NoError(t, err)

	assert.Equal(t, 5, ix.Len())
	assert.Equal(t, []domain.DeckID{1, 2, 3, 4, 5}, ix.IDs())
	assert.True(t, ix.Has(3))
	assert.False(t, ix.Has(99))

	p, err := ix.PathOf(3)
	require.NoError(t, err)
	assert.Equal(t, "Language::German::Verbs", p.String())
}

func TestBuild_MalformedName(t *testing.T) {
	_, err := Build([]domain.Deck{{ID: 1, Name: "A"}, {ID: 7, Name: "A::::B"}})
	require.Error(t, err)

	var mpe *deckpath.MalformedPathError
	require.True(t, errors.As(err, &mpe))
	assert.Equal(t, "A::::B", mpe.Raw)
	assert.Contains(t, err.Error(), "deck 7")
}

func TestBuild_DuplicateID(t *testing.T) {
	_, err := Build([]domain.Deck{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}})
	assert.Error(t, err)
}

func TestAncestorsOf(t *testing.T) {
	ix, err := Build(sampleDecks())
	require.NoError(t, err)

	ancestors, err := ix.AncestorsOf(3)
	require.NoError(t, err)

	var names []string
	for _, a := range ancestors {
		names = append(names, a.String())
	}
	assert.Equal(t, []string{"Language", "Language::German", "Language::German::Verbs"}, names)
}

func TestAncestorsOf_UnknownDeck(t *testing.T) {
	ix, err := Build(sampleDecks())
	require.NoError(t, err)

	_, err = ix.AncestorsOf(42)
	var ude *UnknownDeckError
	require.True(t, errors.As(err, &ude))
	assert.Equal(t, domain.DeckID(42), ude.DeckID)
}

func TestTree(t *testing.T) {
	ix, err := Build(sampleDecks())
	require.NoError(t, err)

	roots := ix.Tree()
	require.Len(t, roots, 2)
	assert.Equal(t, "Default", roots[0].Name)
	assert.Equal(t, "Language", roots[1].Name)

	lang := roots[1]
	require.Len(t, lang.Children, 2)
	assert.Equal(t, "French", lang.Children[0].Name)
	assert.Equal(t, "German", lang.Children[1].Name)
	require.Len(t, lang.Children[1].Children, 1)
	assert.Equal(t, domain.DeckID(3), lang.Children[1].Children[0].DeckID)
}

func TestTree_ImplicitAncestors(t *testing.T) {
	ix, err := Build([]domain.Deck{{ID: 9, Name: "Orphan::Child"}})
	require.NoError(t, err)

	roots := ix.Tree()
	require.Len(t, roots, 1)
	assert.Equal(t, domain.DeckID(0), roots[0].DeckID)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, domain.DeckID(9), roots[0].Children[0].DeckID)
}

func TestWalk(t *testing.T) {
	ix, err := Build(sampleDecks())
	require.NoError(t, err)

	var visited []string
	Walk(ix.Tree(), func(n *Node, depth int) {
		visited = append(visited, n.Path.String())
		assert.Equal(t, n.Path.Len()-1, depth)
	})

	assert.Equal(t, []string{
		"Default",
		"Language",
		"Language::French",
		"Language::German",
		"Language::German::Verbs",
	}, visited)
}
