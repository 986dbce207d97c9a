// Package redis is the shared credential store. Several gateway replicas
// pointed at the same redis see one session and one redirect counter.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the gateway.
const DefaultPrefix = "ssogate:"

const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
)

type Store struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

// New wraps an existing client. The caller keeps ownership of it.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Open connects to redisURL and verifies the connection. Close releases the
// client.
func Open(ctx context.Context, redisURL, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid url: %w", err)
	}
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = readTimeout
	opts.WriteTimeout = writeTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	s := New(client, prefix)
	s.owned = true
	return s, nil
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, credstore.ErrNotFound
	}
	return raw, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// go-redis reads a negative expiration as KEEPTTL.
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// ApplyMigrations is a no-op; redis has no schema.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
