package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/identity"
	"github.com/aussiebroadwan/ssogate/internal/session"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/aussiebroadwan/ssogate/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// provider is a scripted identity provider. Handlers left nil answer with
// the happy-path payload.
type provider struct {
	profileCalls atomic.Int32
	permCalls    atomic.Int32

	profile     http.HandlerFunc
	permissions http.HandlerFunc
	roles       http.HandlerFunc
	menus       http.HandlerFunc
	introspect  http.HandlerFunc
}

func (p *provider) mux() *http.ServeMux {
	or := func(h, def http.HandlerFunc) http.HandlerFunc {
		if h != nil {
			return h
		}
		return def
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/userinfo", func(w http.ResponseWriter, r *http.Request) {
		p.profileCalls.Add(1)
		or(p.profile, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, idp.Profile{UserID: "u-1", Username: "alice", PreferredName: "Alice", Roles: []string{session.RolePersonal}})
		})(w, r)
	})
	mux.HandleFunc("GET /v1/userinfo/permissions", func(w http.ResponseWriter, r *http.Request) {
		p.permCalls.Add(1)
		or(p.permissions, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"permissions": []string{"system:user:list"}})
		})(w, r)
	})
	mux.HandleFunc("GET /v1/userinfo/roles", or(p.roles, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, idp.RoleInfo{Roles: []string{session.RoleAdmin}, PrimaryRole: session.RoleAdmin, DashboardPath: "/dashboard/admin"})
	}))
	mux.HandleFunc("GET /v1/userinfo/menus", or(p.menus, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"menus": []idp.Menu{
			{ID: "1", Name: "System", Path: "/system", Children: []idp.Menu{{ID: "2", Name: "Users", Path: "/system/user"}}},
			{ID: "3", Name: "Hidden", Path: "/secret", Hidden: true},
		}})
	}))
	mux.HandleFunc("POST /v1/oauth2/introspect", or(p.introspect, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, idp.IntrospectionResponse{Active: true, Subject: "u-1", Username: "alice"})
	}))
	return mux
}

type fixture struct {
	state    *session.State
	resolver *identity.Resolver
	invalid  atomic.Int32
}

func newFixture(t *testing.T, p *provider) *fixture {
	t.Helper()

	srv := httptest.NewServer(p.mux())
	t.Cleanup(srv.Close)

	f := &fixture{state: session.NewState(session.DefaultRanking())}
	f.resolver = identity.NewResolver(identity.Deps{
		State:  f.state,
		Client: idp.New(srv.URL, "gateway", time.Second),
		Logger: slogx.Discard(),
		OnInvalid: func(context.Context) {
			f.invalid.Add(1)
			f.state.Clear()
		},
	}, 2*time.Second)

	f.state.Begin(session.Tokens{Token: "at-1"}, nil)
	return f
}

func unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusUnauthorized, idp.ErrorResponse{Error: idp.ErrorCodeInvalidToken})
}

func forbidden(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusForbidden, idp.ErrorResponse{Error: idp.ErrorCodeAccessDenied})
}

func unavailable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusServiceUnavailable, idp.ErrorResponse{Error: idp.ErrorCodeServerError})
}

func TestFetchUserData(t *testing.T) {
	t.Run("applies everything at once", func(t *testing.T) {
		f := newFixture(t, &provider{})

		require.True(t, f.resolver.FetchUserData(context.Background()))

		snap := f.state.Snapshot()
		require.True(t, snap.ProfileComplete())
		require.Equal(t, "alice", snap.UserInfo.Username)
		require.Equal(t, "Alice", snap.UserInfo.DisplayName)
		require.Equal(t, []string{session.RoleAdmin}, snap.Roles)
		require.Equal(t, session.RoleAdmin, snap.PrimaryRole)
		require.Equal(t, "/dashboard/admin", snap.DashboardPath)
		require.True(t, snap.HasPermission("system:user:list"))
		require.Len(t, snap.Menus, 1)
		require.Len(t, snap.Menus[0].Children, 1)
	})

	t.Run("secondary failures degrade", func(t *testing.T) {
		f := newFixture(t, &provider{permissions: unavailable, roles: unavailable, menus: unavailable})

		require.True(t, f.resolver.FetchUserData(context.Background()))

		snap := f.state.Snapshot()
		require.True(t, snap.HasProfile())
		require.False(t, snap.ProfileComplete())
		require.False(t, snap.PermissionsLoaded)
		require.False(t, snap.RolesLoaded)

		// Roles fall back to the profile's own.
		require.Equal(t, session.RolePersonal, snap.PrimaryRole)
		require.True(t, snap.IsLoggedIn())
	})

	t.Run("profile failure fails the fetch", func(t *testing.T) {
		f := newFixture(t, &provider{profile: unavailable})

		require.False(t, f.resolver.FetchUserData(context.Background()))

		snap := f.state.Snapshot()
		require.True(t, snap.IsLoggedIn())
		require.False(t, snap.HasProfile())
		require.Zero(t, f.invalid.Load())
	})

	t.Run("forbidden profile keeps the session", func(t *testing.T) {
		f := newFixture(t, &provider{profile: forbidden, permissions: forbidden})

		require.False(t, f.resolver.FetchUserData(context.Background()))
		require.Zero(t, f.invalid.Load())
		require.True(t, f.state.Snapshot().IsLoggedIn())
	})

	t.Run("forbidden permissions load empty", func(t *testing.T) {
		f := newFixture(t, &provider{permissions: forbidden})

		require.True(t, f.resolver.FetchUserData(context.Background()))

		snap := f.state.Snapshot()
		require.True(t, snap.PermissionsLoaded)
		require.False(t, snap.HasPermission("system:user:list"))
		require.True(t, snap.IsLoggedIn())
	})

	t.Run("profile rejection clears the session", func(t *testing.T) {
		f := newFixture(t, &provider{profile: unauthorized})

		require.False(t, f.resolver.FetchUserData(context.Background()))
		require.EqualValues(t, 1, f.invalid.Load())
		require.False(t, f.state.Snapshot().IsLoggedIn())
	})

	t.Run("logged out does nothing", func(t *testing.T) {
		p := &provider{}
		f := newFixture(t, p)
		f.state.Clear()

		require.False(t, f.resolver.FetchUserData(context.Background()))
		require.Zero(t, p.profileCalls.Load())
	})

	t.Run("concurrent callers share one fetch", func(t *testing.T) {
		release := make(chan struct{})
		p := &provider{profile: func(w http.ResponseWriter, r *http.Request) {
			<-release
			writeJSON(w, http.StatusOK, idp.Profile{UserID: "u-1", Username: "alice"})
		}}
		f := newFixture(t, p)

		var (
			wg sync.WaitGroup
			ok atomic.Int32
		)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if f.resolver.FetchUserData(context.Background()) {
					ok.Add(1)
				}
			}()
		}

		require.Eventually(t, func() bool { return p.profileCalls.Load() == 1 }, time.Second, time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		require.EqualValues(t, 10, ok.Load())
		require.EqualValues(t, 1, p.profileCalls.Load())
	})

	t.Run("result for a replaced session is dropped", func(t *testing.T) {
		release := make(chan struct{})
		p := &provider{profile: func(w http.ResponseWriter, r *http.Request) {
			<-release
			writeJSON(w, http.StatusOK, idp.Profile{UserID: "u-1", Username: "alice"})
		}}
		f := newFixture(t, p)

		done := make(chan bool, 1)
		go func() { done <- f.resolver.FetchUserData(context.Background()) }()

		require.Eventually(t, func() bool { return p.profileCalls.Load() == 1 }, time.Second, time.Millisecond)
		f.state.Clear()
		close(release)

		require.False(t, <-done)
		require.False(t, f.state.Snapshot().HasProfile())
	})
}

func TestCheckPermission(t *testing.T) {
	t.Run("uses cached permissions", func(t *testing.T) {
		p := &provider{}
		f := newFixture(t, p)
		f.state.ApplyUserData(f.state.Generation(), session.UserData{Permissions: []string{"a"}, PermissionsLoaded: true})

		require.True(t, f.resolver.CheckPermission(context.Background(), "a"))
		require.False(t, f.resolver.CheckPermission(context.Background(), "b"))
		require.Zero(t, p.permCalls.Load())
	})

	t.Run("fetches when not loaded", func(t *testing.T) {
		p := &provider{}
		f := newFixture(t, p)

		require.True(t, f.resolver.CheckPermission(context.Background(), "system:user:list"))
		require.EqualValues(t, 1, p.permCalls.Load())
		require.True(t, f.state.Snapshot().PermissionsLoaded)
	})

	t.Run("unavailable means not authorized", func(t *testing.T) {
		f := newFixture(t, &provider{permissions: unavailable})

		require.False(t, f.resolver.CheckPermission(context.Background(), "system:user:list"))
		require.True(t, f.state.Snapshot().IsLoggedIn())
	})

	t.Run("forbidden is cached as no permissions", func(t *testing.T) {
		p := &provider{permissions: forbidden}
		f := newFixture(t, p)

		require.False(t, f.resolver.CheckPermission(context.Background(), "system:user:list"))
		require.False(t, f.resolver.CheckPermission(context.Background(), "system:user:list"))
		require.EqualValues(t, 1, p.permCalls.Load())

		snap := f.state.Snapshot()
		require.True(t, snap.PermissionsLoaded)
		require.True(t, snap.IsLoggedIn())
		require.Zero(t, f.invalid.Load())
	})
}

func TestVerify(t *testing.T) {
	t.Run("valid updates profile", func(t *testing.T) {
		f := newFixture(t, &provider{})

		require.True(t, f.resolver.Verify(context.Background()))
		require.Equal(t, "alice", f.state.Snapshot().UserInfo.Username)
	})

	t.Run("inactive clears", func(t *testing.T) {
		f := newFixture(t, &provider{introspect: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, idp.IntrospectionResponse{Active: false})
		}})

		require.False(t, f.resolver.Verify(context.Background()))
		require.EqualValues(t, 1, f.invalid.Load())
		require.False(t, f.state.Snapshot().IsLoggedIn())
	})

	t.Run("forbidden keeps the session", func(t *testing.T) {
		f := newFixture(t, &provider{introspect: forbidden})

		require.False(t, f.resolver.Verify(context.Background()))
		require.Zero(t, f.invalid.Load())
		require.True(t, f.state.Snapshot().IsLoggedIn())
	})

	t.Run("outage keeps the session", func(t *testing.T) {
		f := newFixture(t, &provider{introspect: unavailable})

		require.False(t, f.resolver.Verify(context.Background()))
		require.Zero(t, f.invalid.Load())
		require.True(t, f.state.Snapshot().IsLoggedIn())
	})
}
