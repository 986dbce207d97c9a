// Package sso owns the gateway's single session and everything that
// changes it: restore on start, interactive and password logins, refresh,
// identity resolution and logout.
package sso

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
	"github.com/aussiebroadwan/ssogate/internal/identity"
	"github.com/aussiebroadwan/ssogate/internal/refresh"
	"github.com/aussiebroadwan/ssogate/internal/session"
	"github.com/aussiebroadwan/ssogate/pkg/cryptox"
	"github.com/aussiebroadwan/ssogate/pkg/fingerprint"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/aussiebroadwan/ssogate/pkg/jwtx"
)

var (
	// ErrNoPendingLogin means a callback arrived with no login in progress,
	// or after the pending login expired.
	ErrNoPendingLogin = errors.New("sso: no pending login")

	ErrEmptyToken = errors.New("sso: empty token")
)

// Provider is the identity provider as the manager uses it.
type Provider interface {
	refresh.Client
	identity.Client

	Login(ctx context.Context, cred idp.Credential) (*idp.LoginResult, error)
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*idp.TokenResponse, error)
	Revoke(ctx context.Context, refreshToken string) error
	BuildAuthorizeURL(redirectURI, state string, scopes []string, pkce *idp.PKCE) string
}

// Config tunes a Manager.
type Config struct {
	// PublicURL is the gateway's external origin, e.g. https://app.example.com.
	PublicURL string

	// LogoutURL is the provider page the browser visits after logout. Empty
	// sends the browser back to the gateway root.
	LogoutURL string

	Scopes         []string
	Refresh        refresh.Policy
	RequestTimeout time.Duration
	Ranking        session.Ranking
}

// CallbackPath is where the provider sends the browser after login.
const CallbackPath = "/callback"

type Manager struct {
	cfg      Config
	state    *session.State
	store    credstore.Store
	provider Provider
	coord    *refresh.Coordinator
	resolver *identity.Resolver
	logger   *slog.Logger
	now      func() time.Time

	fpMu        sync.Mutex
	fingerprint string
}

func New(cfg Config, store credstore.Store, provider Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = idp.DefaultTimeout
	}
	if cfg.Refresh.Timeout <= 0 {
		cfg.Refresh.Timeout = cfg.RequestTimeout
	}
	if cfg.Ranking.Primary(nil) == "" {
		cfg.Ranking = session.DefaultRanking()
	}

	m := &Manager{
		cfg:      cfg,
		state:    session.NewState(cfg.Ranking),
		store:    store,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
	m.coord = refresh.NewCoordinator(refresh.Deps{
		State:       m.state,
		Store:       store,
		Client:      provider,
		Logger:      logger.With("component", "refresh"),
		Fingerprint: m.deviceFingerprint,
		OnInvalid:   m.ClearAuth,
	}, cfg.Refresh)
	m.resolver = identity.NewResolver(identity.Deps{
		State:     m.state,
		Client:    provider,
		Logger:    logger.With("component", "identity"),
		OnInvalid: m.ClearAuth,
	}, cfg.RequestTimeout)
	return m
}

// Init restores the persisted session, if any, brings its token up to date
// and resolves its identity. A provider outage leaves the restored session
// in place; only store failures are returned.
func (m *Manager) Init(ctx context.Context) error {
	rec, err := credstore.LoadToken(ctx, m.store)
	switch {
	case errors.Is(err, credstore.ErrNotFound):
		m.logger.Info("session_restore_skipped", "reason", "no persisted session")
		return nil
	case errors.Is(err, credstore.ErrCorrupt):
		m.logger.Warn("session_restore_discarded", "error", err)
		return credstore.ClearToken(ctx, m.store)
	case err != nil:
		return fmt.Errorf("restore session: %w", err)
	}

	expiresAt := rec.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = jwtx.ExpiresAt(rec.Token)
	}
	m.state.Begin(session.Tokens{
		Token:             rec.Token,
		RefreshCredential: rec.RefreshCredential,
		ExpiresAt:         expiresAt,
	}, nil)
	m.logger.Info("session_restored", "expires_at", expiresAt, "saved_at", rec.SavedAt)

	if m.coord.EnsureFresh(ctx) {
		m.FetchUserData(ctx)
	}
	if snap := m.state.Snapshot(); snap.IsLoggedIn() {
		m.coord.Arm(snap)
	}
	return nil
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() session.Snapshot {
	return m.state.Snapshot()
}

// Ranking returns the role ranking in use.
func (m *Manager) Ranking() session.Ranking {
	return m.state.Ranking()
}

// SetToken starts a session from a bare access token, as handed over by an
// external login. Expiry comes from the token's exp claim, and the claims
// seed the profile until userinfo is fetched.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	_, err := m.establish(ctx, &idp.TokenResponse{AccessToken: token}, profileFromClaims(token))
	return err
}

func profileFromClaims(token string) *idp.Profile {
	claims, err := jwtx.Parse(token)
	if err != nil || claims.Subject == "" {
		return nil
	}
	return &idp.Profile{
		UserID:      claims.Subject,
		Username:    claims.Username,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}
}

// Login runs a password login and resolves the new session's identity.
func (m *Manager) Login(ctx context.Context, cred idp.Credential) (session.Snapshot, error) {
	res, err := m.provider.Login(ctx, cred)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("login: %w", err)
	}
	if _, err := m.establish(ctx, res.Tokens, res.Profile); err != nil {
		return session.Snapshot{}, err
	}
	m.landed(ctx)
	return m.state.Snapshot(), nil
}

// BeginLogin records a pending interactive login and returns the provider
// URL to send the browser to. returnURL is where the browser goes once the
// callback completes; anything not on this gateway's origin becomes "/".
func (m *Manager) BeginLogin(ctx context.Context, returnURL string) (string, error) {
	pkce, err := idp.NewPKCE()
	if err != nil {
		return "", err
	}
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("generate login state: %w", err)
	}

	if err := credstore.SaveLoginState(ctx, m.store, credstore.LoginState{
		State:        state,
		CodeVerifier: pkce.Verifier,
		ReturnURL:    m.SafeReturnURL(returnURL),
		CreatedAt:    m.now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("save login state: %w", err)
	}

	return m.provider.BuildAuthorizeURL(m.callbackURL(), state, m.cfg.Scopes, pkce), nil
}

// CompleteLogin redeems the code from the provider's callback, starts the
// session and returns where to send the browser.
func (m *Manager) CompleteLogin(ctx context.Context, code, state string) (string, error) {
	pending, err := credstore.TakeLoginState(ctx, m.store, state)
	switch {
	case errors.Is(err, credstore.ErrNotFound):
		return "", ErrNoPendingLogin
	case err != nil:
		return "", err
	}

	tokens, err := m.provider.ExchangeCode(ctx, code, m.callbackURL(), pending.CodeVerifier)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	if _, err := m.establish(ctx, tokens, nil); err != nil {
		return "", err
	}
	m.landed(ctx)

	if pending.ReturnURL == "" {
		return session.RootPath, nil
	}
	return pending.ReturnURL, nil
}

// landed finishes a login: resolve identity, and stop counting login
// redirects now that one succeeded.
func (m *Manager) landed(ctx context.Context) {
	if !m.FetchUserData(ctx) {
		m.logger.Warn("login_profile_incomplete")
	}
	if err := credstore.ClearCounter(ctx, m.store); err != nil {
		m.logger.Warn("loop_counter_reset_failed", "error", err)
	}
}

func (m *Manager) establish(ctx context.Context, tokens *idp.TokenResponse, profile *idp.Profile) (session.Snapshot, error) {
	now := m.now()

	var info *session.UserInfo
	if profile != nil {
		info = identity.UserInfoFromProfile(profile)
	}
	gen := m.state.Begin(session.Tokens{
		Token:             tokens.AccessToken,
		RefreshCredential: tokens.RefreshToken,
		ExpiresAt:         tokens.Expiry(now),
	}, info)
	snap := m.state.Snapshot()

	err := credstore.SaveToken(ctx, m.store, credstore.TokenRecord{
		Token:             snap.Token,
		RefreshCredential: snap.RefreshCredential,
		ExpiresAt:         snap.ExpiresAt,
		RefreshExpiresAt:  tokens.RefreshExpiry(now),
		SavedAt:           now.UTC(),
	})
	if err != nil {
		m.logger.Error("session_persist_failed", "error", err)
		return snap, fmt.Errorf("persist session: %w", err)
	}
	if m.state.Generation() != gen {
		_ = credstore.ClearToken(ctx, m.store)
		return session.Snapshot{}, refresh.ErrSuperseded
	}

	m.coord.Arm(snap)
	m.logger.Info("session_started", "generation", gen, "expires_at", snap.ExpiresAt, "has_refresh", snap.RefreshCredential != "")
	return snap, nil
}

// Logout revokes the refresh credential, best effort, clears the session
// and returns the URL to send the browser to.
func (m *Manager) Logout(ctx context.Context) string {
	snap := m.state.Snapshot()
	if snap.RefreshCredential != "" {
		rctx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
		if err := m.provider.Revoke(rctx, snap.RefreshCredential); err != nil {
			m.logger.Warn("revoke_failed", "error", err)
		}
		cancel()
	}
	m.ClearAuth(ctx)
	return m.LogoutURL()
}

// LogoutURL is where the browser goes after logout.
func (m *Manager) LogoutURL() string {
	if m.cfg.LogoutURL == "" {
		return session.RootPath
	}
	u, err := url.Parse(m.cfg.LogoutURL)
	if err != nil {
		return session.RootPath
	}
	if m.cfg.PublicURL != "" {
		q := u.Query()
		q.Set("redirect", m.cfg.PublicURL)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ClearAuth wipes the session in memory and in the store and stops
// automatic refresh.
func (m *Manager) ClearAuth(ctx context.Context) {
	m.state.Clear()
	m.coord.Disarm()
	if err := credstore.ClearToken(ctx, m.store); err != nil {
		m.logger.Error("session_clear_failed", "error", err)
	}
	m.logger.Info("session_cleared", "generation", m.state.Generation())
}

// EnsureFresh reports whether the session holds a usable token, refreshing
// it first when it is about to expire.
func (m *Manager) EnsureFresh(ctx context.Context) bool {
	return m.coord.EnsureFresh(ctx)
}

// Refresh forces a token refresh.
func (m *Manager) Refresh(ctx context.Context) (session.Snapshot, error) {
	return m.coord.Refresh(ctx)
}

// FetchUserData resolves the session's identity from the provider.
func (m *Manager) FetchUserData(ctx context.Context) bool {
	return m.resolver.FetchUserData(ctx)
}

// Verify checks the token with the provider.
func (m *Manager) Verify(ctx context.Context) bool {
	return m.resolver.Verify(ctx)
}

// CheckPermission reports whether the user holds perm, fetching
// permissions when they have not loaded yet.
func (m *Manager) CheckPermission(ctx context.Context, perm string) bool {
	return m.resolver.CheckPermission(ctx, perm)
}

// CheckRole reports whether the user holds role.
func (m *Manager) CheckRole(role string) bool {
	return m.state.Snapshot().HasRole(role)
}

// Close stops background work. The persisted session is kept.
func (m *Manager) Close() {
	m.coord.Disarm()
}

func (m *Manager) callbackURL() string {
	return m.cfg.PublicURL + CallbackPath
}

// SafeReturnURL reduces raw to a path on this gateway, or "/" when it
// points anywhere else.
func (m *Manager) SafeReturnURL(raw string) string {
	if raw == "" {
		return session.RootPath
	}
	u, err := url.Parse(raw)
	if err != nil {
		return session.RootPath
	}

	if u.Scheme != "" || u.Host != "" {
		origin, err := url.Parse(m.cfg.PublicURL)
		if err != nil || origin.Host == "" || u.Scheme != origin.Scheme || u.Host != origin.Host {
			return session.RootPath
		}
	}

	// Browsers read a leading "//" or "/\" as another origin.
	if u.Path == "" || u.Path[0] != '/' || strings.HasPrefix(u.Path, "//") || strings.HasPrefix(u.Path, "/\\") || u.Path == CallbackPath {
		return session.RootPath
	}
	p := u.EscapedPath()
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// deviceFingerprint is computed once per process from the persisted
// installation id and the host environment.
func (m *Manager) deviceFingerprint(ctx context.Context) string {
	m.fpMu.Lock()
	defer m.fpMu.Unlock()

	if m.fingerprint != "" {
		return m.fingerprint
	}
	id, err := credstore.DeviceID(ctx, m.store)
	if err != nil {
		m.logger.Warn("device_id_unavailable", "error", err)
		return ""
	}
	m.fingerprint = fingerprint.Collect(id).Fingerprint()
	return m.fingerprint
}
