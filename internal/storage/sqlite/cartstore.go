// Package sqlite implements the cart store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xenking/kart-engine/internal/domain/lifecycle"
)

const schema = `
CREATE TABLE IF NOT EXISTS cart_wrappers (
	cart_id    TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

var _ lifecycle.Storage = (*CartStore)(nil)

// CartStore implements lifecycle.Storage in a single SQLite table.
type CartStore struct {
	db *sql.DB
}

// Open opens the database at path and applies the schema.
func Open(path string) (*CartStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", filepath.Clean(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &CartStore{db: db}, nil
}

// Close closes the database handle.
func (s *CartStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *CartStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the stored envelope for key, or lifecycle.ErrNotFound.
func (s *CartStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM cart_wrappers WHERE cart_id = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lifecycle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting cart %q: %w", key, err)
	}
	return payload, nil
}

// Set stores value under key, replacing any previous envelope.
func (s *CartStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cart_wrappers (cart_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (cart_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storing cart %q: %w", key, err)
	}
	return nil
}
