// Package statestore persists client state (session token, user profile,
// cart snapshot) to a local SQLite database so it survives process
// restarts. Absence of a key is a normal state, reported via ErrNotFound.
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("statestore: key not found")

const schema = `
CREATE TABLE IF NOT EXISTS client_state (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

const (
	defaultDir = ".storefront"
	defaultDB  = "storefront.db"
)

// Fixed keys for durably stored client state.
const (
	KeySessionToken = "session/token"
	KeySessionUser  = "session/user"
	KeyCartSnapshot = "cart/snapshot"
)

// Store is a SQLite-backed key-value store for client state.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database path, ~/.storefront/storefront.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("statestore: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultDir, defaultDB), nil
}

// Open opens (or creates) the store at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("statestore: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statestore: open: %w", err)
	}

	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statestore: set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statestore: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put stores value under key, replacing any existing value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("statestore: key is empty")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("statestore: put %q: %w", key, err)
	}
	return nil
}

// Get returns the stored value for key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: get %q: %w", key, err)
	}
	return value, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("statestore: delete %q: %w", key, err)
	}
	return nil
}

// Clear removes all stored state.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_state`)
	if err != nil {
		return fmt.Errorf("statestore: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
