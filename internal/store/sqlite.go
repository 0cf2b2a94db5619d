package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pbaille/decktags/internal/deckpath"
	"github.com/pbaille/decktags/internal/domain"
	"github.com/pbaille/decktags/internal/tagkey"
)

// DriverName is the sqlite3 driver registered with Anki's collations
const DriverName = "sqlite3_anki"

// Newer collections separate deck levels with this byte instead of "::"
const nativeDeckSeparator = "\x1f"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// Anki declares deck and tag names COLLATE unicase
			return conn.RegisterCollation("unicase", tagkey.Compare)
		},
	})
}

// Collection handles reads and tag writes on an Anki collection file
type Collection struct {
	db   *sql.DB
	path string

	// fold must match the engine's FoldCase or converted notes are
	// planned again on every run
	fold bool
}

// Open opens the collection at path. The file must already exist.
func Open(path string) (*Collection, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Anki itself is single-writer; one connection keeps us the same
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Collection{db: db, path: path, fold: true}, nil
}

// SetFoldCase sets whether ApplyTags treats tags differing only in case as
// the same tag. Collections fold by default.
func (c *Collection) SetFoldCase(fold bool) { c.fold = fold }

// Close closes the database connection
func (c *Collection) Close() error {
	return c.db.Close()
}

// Path returns the collection file path
func (c *Collection) Path() string { return c.path }

// Snapshot reads decks, cards and note tags in one read transaction
func (c *Collection) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	decks, err := readDecks(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	cards, err := readCards(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	tags, err := readNoteTags(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	return domain.Snapshot{Decks: decks, Cards: cards, Tags: tags}, nil
}

// Decks returns the deck table only
func (c *Collection) Decks(ctx context.Context) ([]domain.Deck, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	return readDecks(ctx, tx)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasTable(ctx context.Context, q querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

func readDecks(ctx context.Context, q querier) ([]domain.Deck, error) {
	modern, err := hasTable(ctx, q, "decks")
	if err != nil {
		return nil, err
	}
	if !modern {
		return readLegacyDecks(ctx, q)
	}

	rows, err := q.QueryContext(ctx, "SELECT id, name FROM decks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var d domain.Deck
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		d.Name = strings.ReplaceAll(d.Name, nativeDeckSeparator, deckpath.Delimiter)
		decks = append(decks, d)
	}

	return decks, rows.Err()
}

// legacyDeck is the part of a col.decks JSON entry we need
type legacyDeck struct {
	ID   domain.DeckID `json:"id"`
	Name string        `json:"name"`
}

func readLegacyDecks(ctx context.Context, q querier) ([]domain.Deck, error) {
	var raw string
	if err := q.QueryRowContext(ctx, "SELECT decks FROM col").Scan(&raw); err != nil {
		return nil, fmt.Errorf("read legacy decks: %w", err)
	}

	var byID map[string]legacyDeck
	if err := json.Unmarshal([]byte(raw), &byID); err != nil {
		return nil, fmt.Errorf("parse legacy decks: %w", err)
	}

	decks := make([]domain.Deck, 0, len(byID))
	for _, d := range byID {
		decks = append(decks, domain.Deck{ID: d.ID, Name: d.Name})
	}
	sortDecks(decks)

	return decks, nil
}

func readCards(ctx context.Context, q querier) ([]domain.Card, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, nid, did, odid FROM cards ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		var odid domain.DeckID
		if err := rows.Scan(&c.ID, &c.NoteID, &c.DeckID, &odid); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		// A card borrowed by a filtered deck still belongs to its home deck
		if odid != 0 {
			c.DeckID = odid
		}
		cards = append(cards, c)
	}

	return cards, rows.Err()
}

func readNoteTags(ctx context.Context, q querier) (map[domain.NoteID][]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, tags FROM notes")
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	tags := make(map[domain.NoteID][]string)
	for rows.Next() {
		var id domain.NoteID
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		tags[id] = SplitTags(raw)
	}

	return tags, rows.Err()
}

// ApplyTags adds the mutations' tags to their notes in one transaction.
// Each note's tags are re-read inside the transaction and only missing tags
// are appended; nothing is removed.
func (c *Collection) ApplyTags(ctx context.Context, mutations []domain.TagMutation) (domain.ApplyResult, error) {
	result := domain.ApplyResult{Failed: make(map[domain.NoteID]string)}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback()

	registry, err := hasTable(ctx, tx, "tags")
	if err != nil {
		return result, err
	}

	now := time.Now()
	for _, m := range mutations {
		var raw string
		err := tx.QueryRowContext(ctx, "SELECT tags FROM notes WHERE id = ?", m.NoteID).Scan(&raw)
		if err == sql.ErrNoRows {
			result.Failed[m.NoteID] = "note not found"
			continue
		}
		if err != nil {
			return domain.ApplyResult{}, fmt.Errorf("read note %d: %w", m.NoteID, err)
		}

		merged := MergeTags(SplitTags(raw), m.Add, c.fold)
		_, err = tx.ExecContext(ctx,
			"UPDATE notes SET tags = ?, mod = ?, usn = -1 WHERE id = ?",
			JoinTags(merged), now.Unix(), m.NoteID,
		)
		if err != nil {
			return domain.ApplyResult{}, fmt.Errorf("update note %d: %w", m.NoteID, err)
		}

		if registry {
			for _, tag := range m.Add {
				if _, err := tx.ExecContext(ctx,
					"INSERT OR IGNORE INTO tags (tag, usn, collapsed) VALUES (?, -1, 0)",
					tag,
				); err != nil {
					return domain.ApplyResult{}, fmt.Errorf("register tag %q: %w", tag, err)
				}
			}
		}

		result.Applied = append(result.Applied, m.NoteID)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE col SET mod = ?", now.UnixMilli()); err != nil {
		return domain.ApplyResult{}, fmt.Errorf("touch collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.ApplyResult{}, fmt.Errorf("commit tags: %w", err)
	}

	return result, nil
}

// Backup writes a consistent copy of the collection to dst, which must not exist
func (c *Collection) Backup(ctx context.Context, dst string) error {
	if _, err := c.db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("backup collection: %w", err)
	}
	return nil
}
