package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/ssogate/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwtx.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-secret"))
	require.NoError(t, err)
	return raw
}

func TestParse(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := sign(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: "alice",
		Roles:    []string{"ADMIN"},
	})

	t.Run("reads claims without the key", func(t *testing.T) {
		claims, err := jwtx.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, "u-1", claims.Subject)
		require.Equal(t, "alice", claims.Username)
		require.Equal(t, []string{"ADMIN"}, claims.Roles)
	})

	t.Run("expiry", func(t *testing.T) {
		require.True(t, exp.Equal(jwtx.ExpiresAt(raw)))
	})

	t.Run("opaque token has unknown expiry", func(t *testing.T) {
		require.True(t, jwtx.ExpiresAt("opaque-session-token").IsZero())

		_, err := jwtx.Parse("opaque-session-token")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}
