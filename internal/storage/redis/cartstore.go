// Package redis implements the cart store on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xenking/kart-engine/internal/domain/lifecycle"
)

var _ lifecycle.Storage = (*CartStore)(nil)

// CartStore implements lifecycle.Storage with one Redis string per cart.
type CartStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCartStore returns a CartStore that namespaces keys with prefix. A zero
// ttl keeps entries forever.
func NewCartStore(client *redis.Client, prefix string, ttl time.Duration) *CartStore {
	return &CartStore{client: client, prefix: prefix, ttl: ttl}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the stored envelope for key, or lifecycle.ErrNotFound.
func (s *CartStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, lifecycle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting cart %q: %w", key, err)
	}
	return data, nil
}

// Set stores value under key and refreshes its TTL.
func (s *CartStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing cart %q: %w", key, err)
	}
	return nil
}

func (s *CartStore) key(id string) string {
	return fmt.Sprintf("%s:cart:%s", s.prefix, id)
}
