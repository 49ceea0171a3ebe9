// Package budget enforces daily call quotas via atomic check-and-increment
// counters. Counters are keyed by (local calendar date, counter type); day
// rollover is an implicit key change, never an explicit reset.
package budget

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// CounterStore is the persistence contract for budget counters. The
// CompareAndSet primitive is what makes TryConsume safe if cycles ever
// overlap across processes, so implementations must make it atomic.
type CounterStore interface {
	Get(ctx context.Context, key string) (int64, error)
	CompareAndSet(ctx context.Context, key string, expected, newValue int64) (bool, error)
	Close() error
}

// SQLiteStore persists counters in SQLite. CompareAndSet relies on a
// conditional UPDATE, which SQLite executes atomically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the counter database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening counter database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS counters (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating counter schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the counter value, or 0 when the key has never been written.
func (s *SQLiteStore) Get(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading counter %s: %w", key, err)
	}
	return value, nil
}

// CompareAndSet sets the counter to newValue only if it currently holds
// expected. A missing row counts as 0.
func (s *SQLiteStore) CompareAndSet(ctx context.Context, key string, expected, newValue int64) (bool, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO counters (key, value) VALUES (?, 0) ON CONFLICT(key) DO NOTHING`, key); err != nil {
		return false, fmt.Errorf("initializing counter %s: %w", key, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE counters SET value = ? WHERE key = ? AND value = ?`, newValue, key, expected)
	if err != nil {
		return false, fmt.Errorf("updating counter %s: %w", key, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating counter %s: %w", key, err)
	}
	return rows == 1, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is an in-process CounterStore for tests and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]int64)}
}

// Get returns the counter value, or 0 when unset.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key], nil
}

// CompareAndSet sets the counter to newValue only if it currently holds expected.
func (s *MemoryStore) CompareAndSet(ctx context.Context, key string, expected, newValue int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[key] != expected {
		return false, nil
	}
	s.counters[key] = newValue
	return true, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
