// Package idempotency lets clients retry order creation safely: the same
// Idempotency-Key always maps back to the first order it produced.
package idempotency

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const Header = "Idempotency-Key"

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Store reserves a key for an order id. Reserve returns the id already bound
// to the key and false when someone else got there first.
type Store interface {
	Reserve(ctx context.Context, key, orderID string, ttl time.Duration) (string, bool, error)
	// Lookup returns the order id bound to the key, if any.
	Lookup(ctx context.Context, key string) (string, bool, error)
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "idempotency:order:"}
}

func (s *RedisStore) Reserve(ctx context.Context, key, orderID string, ttl time.Duration) (string, bool, error) {
	full := s.prefix + key
	ok, err := s.client.SetNX(ctx, full, orderID, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return orderID, true, nil
	}
	existing, err := s.client.Get(ctx, full).Result()
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	existing, err := s.client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return existing, true, nil
}

// MemStore backs requests when no redis is configured. Entries never expire;
// it exists for tests and single-process runs.
type MemStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{keys: make(map[string]string)}
}

func (s *MemStore) Reserve(ctx context.Context, key, orderID string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.keys[key]; ok {
		return existing, false, nil
	}
	s.keys[key] = orderID
	return orderID, true, nil
}

func (s *MemStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.keys[key]
	return existing, ok, nil
}
