// Package memory is a process-local credential store. Nothing survives a
// restart; it exists for tests and throwaway runs.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type Store struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{data: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return nil, credstore.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil, credstore.ErrNotFound
	}
	return slices.Clone(e.value), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// PurgeExpired drops expired entries.
func (s *Store) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := s.now()
	for k, e := range s.data {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) ApplyMigrations() error        { return nil }
func (s *Store) Ping(_ context.Context) error { return nil }
func (s *Store) Close() error                 { return nil }
