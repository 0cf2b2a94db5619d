package store

import (
	"context"
	"database/sql"
	_ "embed"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/decktags/internal/domain"
	"github.com/pbaille/decktags/internal/engine"
)

//go:embed testdata/modern.sql
var modernSchema string

//go:embed testdata/legacy.sql
var legacySchema string

// newCollection creates a collection file from schema and fixture statements
func newCollection(t *testing.T, schema string, fixtures ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collection.anki2")

	db, err := sql.Open(DriverName, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(schema)
	require.NoError(t, err)
	for _, f := range fixtures {
		_, err = db.Exec(f)
		require.NoError(t, err, f)
	}
	return path
}

func modernFixtures() []string {
	return []string{
		"INSERT INTO decks (id, name) VALUES (1, 'Default'), (10, 'Language'), (11, 'Language' || char(31) || 'German'), (12, 'Language' || char(31) || 'German' || char(31) || 'Irregular Verbs')",
		"INSERT INTO notes (id, tags) VALUES (100, ''), (200, ' leech marked '), (300, '')",
		"INSERT INTO cards (id, nid, did, odid) VALUES (1000, 100, 12, 0), (2000, 200, 11, 0), (2001, 200, 1, 0), (3000, 300, 99, 10)",
		"INSERT INTO tags (tag, usn, collapsed) VALUES ('leech', 0, 0)",
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.anki2"))
	assert.Error(t, err)
}

func TestSnapshot_Modern(t *testing.T) {
	c, err := Open(newCollection(t, modernSchema, modernFixtures()...))
	require.NoError(t, err)
	defer c.Close()

	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Deck{
		{ID: 1, Name: "Default"},
		{ID: 10, Name: "Language"},
		{ID: 11, Name: "Language::German"},
		{ID: 12, Name: "Language::German::Irregular Verbs"},
	}, snap.Decks)

	require.Len(t, snap.Cards, 4)
	// Card 3000 sits in a filtered deck; its home deck is 10
	assert.Equal(t, domain.Card{ID: 3000, NoteID: 300, DeckID: 10}, snap.Cards[3])

	assert.Equal(t, []string{"leech", "marked"}, snap.Tags[200])
	assert.Empty(t, snap.Tags[100])
}

func TestSnapshot_Legacy(t *testing.T) {
	decks := `{"1": {"id": 1, "name": "Default"}, "1700000000000": {"id": 1700000000000, "name": "Bio::Cells"}}`
	path := newCollection(t, legacySchema,
		"INSERT INTO col (id, decks) VALUES (1, '"+decks+"')",
		"INSERT INTO notes (id, tags) VALUES (5, ' old ')",
		"INSERT INTO cards (id, nid, did) VALUES (50, 5, 1700000000000)",
	)

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Deck{
		{ID: 1, Name: "Default"},
		{ID: 1700000000000, Name: "Bio::Cells"},
	}, snap.Decks)
	assert.Equal(t, []string{"old"}, snap.Tags[5])
}

func TestApplyTags(t *testing.T) {
	c, err := Open(newCollection(t, modernSchema, modernFixtures()...))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	result, err := c.ApplyTags(ctx, []domain.TagMutation{
		{NoteID: 100, Add: []string{"Language", "Language/German"}},
		{NoteID: 200, Add: []string{"LEECH", "Language/German"}},
		{NoteID: 999, Add: []string{"Ghost"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.NoteID{100, 200}, result.Applied)
	assert.Equal(t, map[domain.NoteID]string{999: "note not found"}, result.Failed)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Language", "Language/German"}, snap.Tags[100])
	assert.Equal(t, []string{"leech", "marked", "Language/German"}, snap.Tags[200])

	var usn int
	require.NoError(t, c.db.QueryRow("SELECT usn FROM notes WHERE id = 100").Scan(&usn))
	assert.Equal(t, -1, usn)

	var registered int
	require.NoError(t, c.db.QueryRow("SELECT count(*) FROM tags").Scan(&registered))
	assert.Equal(t, 3, registered)
}

func TestApplyTags_LegacyHasNoRegistry(t *testing.T) {
	path := newCollection(t, legacySchema,
		"INSERT INTO col (id) VALUES (1)",
		"INSERT INTO notes (id, tags) VALUES (5, '')",
	)

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	result, err := c.ApplyTags(context.Background(), []domain.TagMutation{{NoteID: 5, Add: []string{"Bio"}}})
	require.NoError(t, err)
	assert.Equal(t, []domain.NoteID{5}, result.Applied)
}

func TestEndToEnd_Idempotent(t *testing.T) {
	c, err := Open(newCollection(t, modernSchema, modernFixtures()...))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	e, err := engine.New(engine.Options{FoldCase: true})
	require.NoError(t, err)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	muts, err := e.Convert(ctx, snap)
	require.NoError(t, err)
	require.Len(t, muts, 3)
	assert.Equal(t, []string{"Language", "Language/German", "Language/German/Irregular_Verbs"}, muts[0].Add)
	assert.Equal(t, []string{"Default", "Language", "Language/German"}, muts[1].Add)
	assert.Equal(t, []string{"Language"}, muts[2].Add)

	report, err := e.Apply(ctx, muts, c)
	require.NoError(t, err)
	assert.Equal(t, []domain.NoteID{100, 200, 300}, report.Applied)

	snap, err = c.Snapshot(ctx)
	require.NoError(t, err)
	again, err := e.Convert(ctx, snap)
	require.NoError(t, err)
	assert.Empty(t, again)

	assert.Subset(t, snap.Tags[200], []string{"leech", "marked"})
}

func TestEndToEnd_IdempotentCaseSensitive(t *testing.T) {
	c, err := Open(newCollection(t, modernSchema,
		"INSERT INTO decks (id, name) VALUES (10, 'Language')",
		"INSERT INTO notes (id, tags) VALUES (100, ' language ')",
		"INSERT INTO cards (id, nid, did) VALUES (1000, 100, 10)",
	))
	require.NoError(t, err)
	defer c.Close()
	c.SetFoldCase(false)
	ctx := context.Background()

	e, err := engine.New(engine.Options{FoldCase: false})
	require.NoError(t, err)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	muts, err := e.Convert(ctx, snap)
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, []string{"Language"}, muts[0].Add)

	_, err = e.Apply(ctx, muts, c)
	require.NoError(t, err)

	snap, err = c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"language", "Language"}, snap.Tags[100])

	again, err := e.Convert(ctx, snap)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBackup(t *testing.T) {
	c, err := Open(newCollection(t, modernSchema, modernFixtures()...))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	dst := filepath.Join(t.TempDir(), "backup.anki2")
	require.NoError(t, c.Backup(ctx, dst))

	b, err := Open(dst)
	require.NoError(t, err)
	defer b.Close()

	decks, err := b.Decks(ctx)
	require.NoError(t, err)
	assert.Len(t, decks, 4)

	assert.Error(t, c.Backup(ctx, dst), "existing backups are never overwritten")
}
