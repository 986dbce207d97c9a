// Package credstore persists the gateway's session credentials across
// process restarts.
//
// The contract is a small key/value store with per-key expiry. Drivers live
// under drivers/ (sqlite, redis, memory); the typed records the rest of the
// gateway reads and writes are defined in records.go.
package credstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("credstore: not found")
	ErrCorrupt  = errors.New("credstore: unreadable value")
)

// Store is implemented by every driver. Writes are last-writer-wins.
type Store interface {
	// Get returns the value under key, or ErrNotFound when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ApplyMigrations prepares the backing schema. A no-op for schemaless
	// drivers.
	ApplyMigrations() error

	Ping(ctx context.Context) error
	Close() error
}

// Purger is implemented by drivers that need expired rows removed
// explicitly.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
