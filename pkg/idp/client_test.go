package idp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newProvider(t *testing.T, mux *http.ServeMux) *idp.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return idp.New(srv.URL, "gateway", time.Second)
}

func TestRefresh(t *testing.T) {
	t.Run("sends credential and fingerprint", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			require.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
			require.Equal(t, "v1:abc", r.PostForm.Get("device_fingerprint"))
			require.Equal(t, "gateway", r.PostForm.Get("client_id"))
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": "at-2",
				"token_type":   "Bearer",
				"expires_in":   900,
			})
		})
		client := newProvider(t, mux)

		now := time.Now()
		tokens, err := client.Refresh(context.Background(), "rt-1", "v1:abc")
		require.NoError(t, err)
		require.Equal(t, "at-2", tokens.AccessToken)
		require.WithinDuration(t, now.Add(15*time.Minute), tokens.Expiry(now), time.Second)
		require.True(t, tokens.RefreshExpiry(now).IsZero())
	})

	t.Run("invalid_grant is a definitive rejection", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, idp.ErrorResponse{Error: idp.ErrorCodeInvalidGrant, ErrorDescription: "revoked"})
		})
		client := newProvider(t, mux)

		_, err := client.Refresh(context.Background(), "rt-1", "")
		require.True(t, idp.IsInvalidCredential(err))
		require.False(t, idp.IsTransient(err))
	})

	t.Run("401 without body is a definitive rejection", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		client := newProvider(t, mux)

		_, err := client.Refresh(context.Background(), "rt-1", "")
		require.True(t, idp.IsInvalidCredential(err))
	})

	t.Run("5xx and 429 are transient", func(t *testing.T) {
		for _, code := range []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			})
			client := newProvider(t, mux)

			_, err := client.Refresh(context.Background(), "rt-1", "")
			require.True(t, idp.IsTransient(err), code)
			require.False(t, idp.IsInvalidCredential(err), code)
		}
	})

	t.Run("unreachable provider is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := idp.New(srv.URL, "gateway", time.Second).Refresh(context.Background(), "rt-1", "")
		require.ErrorIs(t, err, idp.ErrTransport)
		require.True(t, idp.IsTransient(err))
	})

	t.Run("timeout is transient", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		_, err := idp.New(srv.URL, "gateway", 50*time.Millisecond).Refresh(context.Background(), "rt-1", "")
		require.True(t, idp.IsTransient(err))
	})
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "password", r.PostForm.Get("grant_type"))
		if r.PostForm.Get("password") != "hunter2" {
			writeJSON(w, http.StatusUnauthorized, idp.ErrorResponse{Error: idp.ErrorCodeInvalidGrant})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    60,
		})
	})
	mux.HandleFunc("GET /v1/userinfo", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, idp.Profile{UserID: "u-1", Username: "alice", Roles: []string{"ADMIN"}})
	})
	client := newProvider(t, mux)

	t.Run("success", func(t *testing.T) {
		res, err := client.Login(context.Background(), idp.Credential{Username: "alice", Password: "hunter2"})
		require.NoError(t, err)
		require.Equal(t, "rt-1", res.Tokens.RefreshToken)
		require.Equal(t, "alice", res.Profile.Username)
	})

	t.Run("bad password", func(t *testing.T) {
		_, err := client.Login(context.Background(), idp.Credential{Username: "alice", Password: "nope"})
		require.True(t, idp.IsInvalidCredential(err))
	})
}

func TestUserData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/userinfo/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"permissions": []string{"system:user:list"}})
	})
	mux.HandleFunc("GET /v1/userinfo/roles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, idp.RoleInfo{Roles: []string{"ADMIN"}, PrimaryRole: "ADMIN", DashboardPath: "/dashboard/admin"})
	})
	mux.HandleFunc("GET /v1/userinfo/menus", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, idp.ErrorResponse{Error: idp.ErrorCodeAccessDenied})
	})
	client := newProvider(t, mux)
	ctx := context.Background()

	perms, err := client.FetchPermissions(ctx, "at")
	require.NoError(t, err)
	require.Equal(t, []string{"system:user:list"}, perms)

	roles, err := client.FetchRoles(ctx, "at")
	require.NoError(t, err)
	require.Equal(t, "/dashboard/admin", roles.DashboardPath)

	_, err = client.FetchMenus(ctx, "at")
	require.True(t, idp.IsForbidden(err))
	require.False(t, idp.IsInvalidCredential(err))
	require.False(t, idp.IsTransient(err))
}

func TestVerify(t *testing.T) {
	var active atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/introspect", func(w http.ResponseWriter, r *http.Request) {
		if !active.Load() {
			writeJSON(w, http.StatusOK, idp.IntrospectionResponse{Active: false})
			return
		}
		writeJSON(w, http.StatusOK, idp.IntrospectionResponse{
			Active:   true,
			Subject:  "u-1",
			Username: "alice",
			Exp:      time.Now().Add(time.Hour).Unix(),
		})
	})
	client := newProvider(t, mux)

	v, err := client.Verify(context.Background(), "at")
	require.NoError(t, err)
	require.False(t, v.Valid)

	active.Store(true)
	v, err = client.Verify(context.Background(), "at")
	require.NoError(t, err)
	require.True(t, v.Valid)
	require.Equal(t, "alice", v.Profile.Username)
}

func TestRevoke(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "rt-1", r.PostForm.Get("token"))
		w.WriteHeader(http.StatusOK)
	})
	client := newProvider(t, mux)

	require.NoError(t, client.Revoke(context.Background(), "rt-1"))
	require.EqualValues(t, 1, calls.Load())
}
