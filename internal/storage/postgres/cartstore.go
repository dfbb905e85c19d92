package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-engine/internal/domain/lifecycle"
)

const (
	getCartSQL = `SELECT payload FROM cart_wrappers WHERE cart_id = $1`

	setCartSQL = `INSERT INTO cart_wrappers (cart_id, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cart_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`
)

var _ lifecycle.Storage = (*CartStore)(nil)

// CartStore implements lifecycle.Storage on the cart_wrappers table.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Get returns the stored envelope for key, or lifecycle.ErrNotFound.
func (s *CartStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, getCartSQL, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lifecycle.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", key, err)
	}
	return payload, nil
}

// Set stores value under key, replacing any previous envelope.
func (s *CartStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, setCartSQL, key, value); err != nil {
		return fmt.Errorf("storing cart %q: %w", key, err)
	}
	return nil
}
