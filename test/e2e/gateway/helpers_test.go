//go:build e2e

package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/gateway/app"
	"github.com/aussiebroadwan/ssogate/internal/session"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/aussiebroadwan/ssogate/pkg/slogx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Gateway end-to-end tests: a real redis in a container as the credential
 * store, an in-process provider and the gateway application itself.
 */

const (
	redisImage = "redis:7-alpine"
	publicURL  = "http://gateway.test"
	sealKey    = "e2e-seal-key"
)

// setupRedis starts a redis container and returns its URL.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, mappedPort.Port())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// setupProvider serves an identity provider accepting code "good-code".
// Each issued access token is distinct so refreshes can be observed.
func setupProvider(t *testing.T) *httptest.Server {
	t.Helper()

	var issued int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") == "authorization_code" && r.PostForm.Get("code") != "good-code" {
			writeJSON(w, http.StatusBadRequest, idp.ErrorResponse{Error: idp.ErrorCodeInvalidGrant})
			return
		}
		issued++
		writeJSON(w, http.StatusOK, idp.TokenResponse{
			AccessToken:  fmt.Sprintf("at-%d", issued),
			RefreshToken: "rt",
			TokenType:    "Bearer",
			ExpiresIn:    3600,
		})
	})
	mux.HandleFunc("GET /v1/userinfo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, idp.Profile{UserID: "u-1", Username: "erin", Roles: []string{session.RoleEnterprise}})
	})
	mux.HandleFunc("GET /v1/userinfo/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"permissions": []string{"enterprise:view"}})
	})
	mux.HandleFunc("GET /v1/userinfo/roles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, idp.RoleInfo{Roles: []string{session.RoleEnterprise}})
	})
	mux.HandleFunc("GET /v1/userinfo/menus", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"menus": []idp.Menu{}})
	})
	mux.HandleFunc("POST /v1/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// gateway is one running gateway process.
type gateway struct {
	app    *app.Application
	server *httptest.Server
	client *http.Client
}

// startGateway starts a gateway over the redis store. Starting a second one
// against the same redis simulates a restart.
func startGateway(t *testing.T, redisURL, providerURL string) *gateway {
	t.Helper()

	t.Setenv("RATELIMIT_STRICT_REQUESTS", "1000")
	t.Setenv("RATELIMIT_STRICT_BURST", "1000")

	cfg := app.Config{
		ProviderURL:         providerURL,
		ClientID:            "ssogate",
		PublicURL:           publicURL,
		Policy:              "optimistic",
		RefreshThreshold:    5 * time.Minute,
		RefreshMaxAttempts:  3,
		RefreshBaseDelay:    10 * time.Millisecond,
		RequestTimeout:      5 * time.Second,
		MaxRedirects:        3,
		RedirectWindow:      5 * time.Minute,
		StoreDriver:         app.DriverRedis,
		RedisURL:            redisURL,
		RedisPrefix:         "ssogate-e2e:",
		SealKey:             sealKey,
		ShutdownGracePeriod: time.Second,
	}
	require.NoError(t, cfg.Validate())

	a, err := app.NewWithLogger(t.Context(), cfg, slogx.Discard())
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	g := &gateway{
		app:    a,
		server: srv,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
			Timeout:       10 * time.Second,
		},
	}
	t.Cleanup(g.stop)
	return g
}

func (g *gateway) stop() {
	g.server.Close()
	_ = g.app.Shutdown()
}

// get requests path and returns the status and Location header.
func (g *gateway) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := g.client.Get(g.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Location")
}

// login runs an interactive login for path and returns where the callback
// sent the browser.
func (g *gateway) login(t *testing.T, path string) string {
	t.Helper()

	code, loc := g.get(t, path)
	require.Equal(t, http.StatusFound, code)
	u, err := url.Parse(loc)
	require.NoError(t, err)

	cb := url.Values{"code": {"good-code"}, "state": {u.Query().Get("state")}}
	code, next := g.get(t, "/callback?"+cb.Encode())
	require.Equal(t, http.StatusFound, code)
	return next
}

type sessionView struct {
	LoggedIn        bool     `json:"loggedIn"`
	ProfileComplete bool     `json:"profileComplete"`
	Roles           []string `json:"roles"`
	PrimaryRole     string   `json:"primaryRole"`
}

func (g *gateway) session(t *testing.T) sessionView {
	t.Helper()
	resp, err := g.client.Get(g.server.URL + "/v1/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v sessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
