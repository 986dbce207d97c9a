package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/ssogate/internal/credstore"
	"github.com/aussiebroadwan/ssogate/internal/credstore/credstoretest"
	redisstore "github.com/aussiebroadwan/ssogate/internal/credstore/drivers/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T) (credstoretest.Harness, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return credstoretest.Harness{
		Store:   redisstore.New(client, redisstore.DefaultPrefix),
		Advance: mr.FastForward,
	}, mr
}

func TestContract(t *testing.T) {
	credstoretest.Run(t, func(t *testing.T) credstoretest.Harness {
		h, _ := newHarness(t)
		return h
	})
}

func TestKeysArePrefixed(t *testing.T) {
	h, mr := newHarness(t)
	ctx := context.Background()

	require.NoError(t, credstore.SaveCounter(ctx, h.Store, credstore.RedirectCounter{Count: 2, WindowStart: time.Now()}, 5*time.Minute))

	require.True(t, mr.Exists(redisstore.DefaultPrefix+credstore.KeyRedirectCounter))
	require.Equal(t, 5*time.Minute, mr.TTL(redisstore.DefaultPrefix+credstore.KeyRedirectCounter))
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := redisstore.Open(ctx, "redis://"+mr.Addr()+"/0", "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	got, err := mr.Get("test:k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	_, err = redisstore.Open(ctx, "not a url", "test:")
	require.Error(t, err)
}
