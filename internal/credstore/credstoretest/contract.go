// Package credstoretest is the behavioural contract every credstore driver
// must satisfy.
package credstoretest

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
	"github.com/stretchr/testify/require"
)

// Harness is a fresh store plus a way to move its clock forward.
type Harness struct {
	Store   credstore.Store
	Advance func(time.Duration)
}

// Run exercises the Store contract against stores produced by newHarness.
func Run(t *testing.T, newHarness func(t *testing.T) Harness) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.Store.Get(ctx, "nope")
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Store.Set(ctx, "k", []byte("v1"), 0))
		require.NoError(t, h.Store.Set(ctx, "k", []byte("v2"), 0))

		got, err := h.Store.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v2", string(got))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Store.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, h.Store.Delete(ctx, "k"))
		require.NoError(t, h.Store.Delete(ctx, "k"))

		_, err := h.Store.Get(ctx, "k")
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Store.Set(ctx, "short", []byte("v"), time.Minute))
		require.NoError(t, h.Store.Set(ctx, "forever", []byte("v"), 0))

		h.Advance(30 * time.Second)
		_, err := h.Store.Get(ctx, "short")
		require.NoError(t, err)

		h.Advance(time.Minute)
		_, err = h.Store.Get(ctx, "short")
		require.ErrorIs(t, err, credstore.ErrNotFound)

		_, err = h.Store.Get(ctx, "forever")
		require.NoError(t, err)
	})

	t.Run("overwrite resets ttl", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Store.Set(ctx, "k", []byte("v"), time.Minute))
		require.NoError(t, h.Store.Set(ctx, "k", []byte("v"), 0))

		h.Advance(2 * time.Minute)
		_, err := h.Store.Get(ctx, "k")
		require.NoError(t, err)
	})

	t.Run("token record", func(t *testing.T) {
		h := newHarness(t)
		rec := credstore.TokenRecord{
			Token:             "at",
			RefreshCredential: "rt",
			ExpiresAt:         time.Now().Add(15 * time.Minute).UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, credstore.SaveToken(ctx, h.Store, rec))

		got, err := credstore.LoadToken(ctx, h.Store)
		require.NoError(t, err)
		require.Equal(t, rec.Token, got.Token)
		require.Equal(t, rec.RefreshCredential, got.RefreshCredential)
		require.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

		require.NoError(t, credstore.ClearToken(ctx, h.Store))
		_, err = credstore.LoadToken(ctx, h.Store)
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.Store.Ping(ctx))
	})
}
