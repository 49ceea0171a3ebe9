package mailbox

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// LocalStore is a SQLite-backed item store implementing Store and
// DraftWriter. It backs development setups and integration tests; real
// deployments usually inject an adapter for their mail system instead.
type LocalStore struct {
	db *sql.DB
}

// NewLocalStore opens (and if needed creates) the local mailbox database.
func NewLocalStore(dbPath string) (*LocalStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening mailbox database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		item_id TEXT NOT NULL REFERENCES items(id),
		seq INTEGER NOT NULL,
		sender TEXT NOT NULL,
		sent_at TIMESTAMP NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (item_id, seq)
	);

	CREATE TABLE IF NOT EXISTS labels (
		item_id TEXT NOT NULL REFERENCES items(id),
		label TEXT NOT NULL,
		PRIMARY KEY (item_id, label)
	);

	CREATE TABLE IF NOT EXISTS drafts (
		item_id TEXT PRIMARY KEY REFERENCES items(id),
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_labels_label ON labels(label);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating mailbox schema: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// Close releases the database connection.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Put inserts or replaces an item with its messages and labels. Used for
// seeding local mailboxes and in tests.
func (s *LocalStore) Put(ctx context.Context, it Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting put transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO items (id, subject) VALUES (?, ?)`, it.ID, it.Subject); err != nil {
		return fmt.Errorf("storing item %s: %w", it.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE item_id = ?`, it.ID); err != nil {
		return fmt.Errorf("clearing messages for %s: %w", it.ID, err)
	}
	for i, m := range it.Messages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (item_id, seq, sender, sent_at, body) VALUES (?, ?, ?, ?, ?)`,
			it.ID, i, m.From, m.SentAt.UTC(), m.Body); err != nil {
			return fmt.Errorf("storing message %d of %s: %w", i, it.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE item_id = ?`, it.ID); err != nil {
		return fmt.Errorf("clearing labels for %s: %w", it.ID, err)
	}
	for _, l := range it.Labels {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO labels (item_id, label) VALUES (?, ?)`, it.ID, l); err != nil {
			return fmt.Errorf("storing label %s for %s: %w", l, it.ID, err)
		}
	}

	return tx.Commit()
}

// FindUnlabeled returns up to max items carrying none of the category labels.
func (s *LocalStore) FindUnlabeled(ctx context.Context, categories []string, max int) ([]Item, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories given")
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")
	query := fmt.Sprintf(`
		SELECT i.id FROM items i
		WHERE i.id NOT IN (SELECT item_id FROM labels WHERE label IN (%s))
		ORDER BY (SELECT MIN(sent_at) FROM messages m WHERE m.item_id = i.id)
		LIMIT ?`, placeholders)

	args := make([]interface{}, 0, len(categories)+1)
	for _, c := range categories {
		args = append(args, c)
	}
	args = append(args, max)

	return s.queryItems(ctx, query, args...)
}

// Labels returns the label set for an item.
func (s *LocalStore) Labels(ctx context.Context, itemID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM labels WHERE item_id = ? ORDER BY label`, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying labels for %s: %w", itemID, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// AddLabel attaches a label to an item; adding an existing label is a no-op.
func (s *LocalStore) AddLabel(ctx context.Context, itemID, label string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, itemID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("item %s not found", itemID)
	}
	if err != nil {
		return fmt.Errorf("checking item %s: %w", itemID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO labels (item_id, label) VALUES (?, ?)`, itemID, label); err != nil {
		return fmt.Errorf("adding label %s to %s: %w", label, itemID, err)
	}
	return nil
}

// FindByLabel returns up to max items carrying the label, oldest first.
func (s *LocalStore) FindByLabel(ctx context.Context, label string, maxAgeDays, max int) ([]Item, error) {
	query := `
		SELECT i.id FROM items i
		JOIN labels l ON l.item_id = i.id AND l.label = ?`
	args := []interface{}{label}

	if maxAgeDays > 0 {
		query += `
		WHERE (SELECT MAX(sent_at) FROM messages m WHERE m.item_id = i.id) >= ?`
		args = append(args, time.Now().UTC().AddDate(0, 0, -maxAgeDays))
	}
	query += `
		ORDER BY (SELECT MIN(sent_at) FROM messages m WHERE m.item_id = i.id)
		LIMIT ?`
	args = append(args, max)

	return s.queryItems(ctx, query, args...)
}

// HasDraft reports whether a draft exists for the item.
func (s *LocalStore) HasDraft(ctx context.Context, itemID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM drafts WHERE item_id = ?`, itemID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking draft for %s: %w", itemID, err)
	}
	return true, nil
}

// CreateDraft stores a reply draft for the item.
func (s *LocalStore) CreateDraft(ctx context.Context, itemID, body string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO drafts (item_id, body, created_at) VALUES (?, ?, ?)`,
		itemID, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("creating draft for %s: %w", itemID, err)
	}
	return nil
}

// Get loads a single item with messages and labels.
func (s *LocalStore) Get(ctx context.Context, itemID string) (Item, error) {
	items, err := s.queryItems(ctx, `SELECT id FROM items WHERE id = ?`, itemID)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		return Item{}, fmt.Errorf("item %s not found", itemID)
	}
	return items[0], nil
}

func (s *LocalStore) queryItems(ctx context.Context, query string, args ...interface{}) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		it, err := s.loadItem(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *LocalStore) loadItem(ctx context.Context, id string) (Item, error) {
	it := Item{ID: id}
	if err := s.db.QueryRowContext(ctx, `SELECT subject FROM items WHERE id = ?`, id).Scan(&it.Subject); err != nil {
		return Item{}, fmt.Errorf("loading item %s: %w", id, err)
	}

	msgRows, err := s.db.QueryContext(ctx,
		`SELECT sender, sent_at, body FROM messages WHERE item_id = ? ORDER BY seq`, id)
	if err != nil {
		return Item{}, fmt.Errorf("loading messages for %s: %w", id, err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var m Message
		if err := msgRows.Scan(&m.From, &m.SentAt, &m.Body); err != nil {
			return Item{}, fmt.Errorf("scanning message: %w", err)
		}
		it.Messages = append(it.Messages, m)
	}
	if err := msgRows.Err(); err != nil {
		return Item{}, fmt.Errorf("iterating messages: %w", err)
	}

	labels, err := s.Labels(ctx, id)
	if err != nil {
		return Item{}, err
	}
	it.Labels = labels
	return it, nil
}
