package credstore

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Keys of the persisted records.
const (
	KeySessionToken    = "session_token"
	KeyRedirectCounter = "redirect_attempt_counter"
	KeyLoginState      = "login_state"
	KeyDeviceID        = "device_id"
)

// LoginStateTTL bounds how long an interactive login may take.
const LoginStateTTL = 10 * time.Minute

// ErrStateMismatch reports a callback whose state does not match the pending
// login.
var ErrStateMismatch = errors.New("credstore: login state mismatch")

// TokenRecord is the persisted credential half of a session.
type TokenRecord struct {
	Token             string    `json:"token"`
	RefreshCredential string    `json:"refreshCredential,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt,omitzero"`
	RefreshExpiresAt  time.Time `json:"refreshExpiresAt,omitzero"`
	SavedAt           time.Time `json:"savedAt"`
}

// ttl keeps the record for as long as it can still produce a valid token:
// until the refresh credential expires, or until the token expires when
// there is nothing to refresh with.
func (r TokenRecord) ttl(now time.Time) (time.Duration, bool) {
	switch {
	case !r.RefreshExpiresAt.IsZero():
		d := r.RefreshExpiresAt.Sub(now)
		return d, d > 0
	case r.RefreshCredential == "" && !r.ExpiresAt.IsZero():
		d := r.ExpiresAt.Sub(now)
		return d, d > 0
	default:
		return 0, true
	}
}

// SaveToken persists rec. A record that is already dead is deleted instead.
func SaveToken(ctx context.Context, s Store, rec TokenRecord) error {
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}

	ttl, alive := rec.ttl(rec.SavedAt)
	if !alive {
		return s.Delete(ctx, KeySessionToken)
	}
	return setJSON(ctx, s, KeySessionToken, rec, ttl)
}

// LoadToken returns the persisted token record.
func LoadToken(ctx context.Context, s Store) (TokenRecord, error) {
	var rec TokenRecord
	if err := getJSON(ctx, s, KeySessionToken, &rec); err != nil {
		return TokenRecord{}, err
	}
	if rec.Token == "" {
		return TokenRecord{}, ErrNotFound
	}
	return rec, nil
}

func ClearToken(ctx context.Context, s Store) error {
	return s.Delete(ctx, KeySessionToken)
}

// RedirectCounter counts unauthenticated root redirects inside a window.
type RedirectCounter struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"windowStart"`
}

// LoadCounter returns the counter, or a zero counter when none is stored or
// the stored window has lapsed.
func LoadCounter(ctx context.Context, s Store, now time.Time, window time.Duration) (RedirectCounter, error) {
	var c RedirectCounter
	err := getJSON(ctx, s, KeyRedirectCounter, &c)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorrupt):
		return RedirectCounter{}, nil
	case err != nil:
		return RedirectCounter{}, err
	}

	if now.Sub(c.WindowStart) > window {
		return RedirectCounter{}, nil
	}
	return c, nil
}

// SaveCounter persists c, expiring with its window.
func SaveCounter(ctx context.Context, s Store, c RedirectCounter, window time.Duration) error {
	return setJSON(ctx, s, KeyRedirectCounter, c, window)
}

func ClearCounter(ctx context.Context, s Store) error {
	return s.Delete(ctx, KeyRedirectCounter)
}

// LoginState is the pending interactive login: the CSRF state, the PKCE
// verifier and where to send the browser afterwards.
type LoginState struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"codeVerifier"`
	ReturnURL    string    `json:"returnUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SaveLoginState replaces any pending login.
func SaveLoginState(ctx context.Context, s Store, ls LoginState) error {
	return setJSON(ctx, s, KeyLoginState, ls, LoginStateTTL)
}

// TakeLoginState consumes the pending login if its state matches. The
// pending login is removed either way so a state value is single use.
func TakeLoginState(ctx context.Context, s Store, state string) (LoginState, error) {
	var ls LoginState
	if err := getJSON(ctx, s, KeyLoginState, &ls); err != nil {
		return LoginState{}, err
	}
	if err := s.Delete(ctx, KeyLoginState); err != nil {
		return LoginState{}, err
	}

	if subtle.ConstantTimeCompare([]byte(ls.State), []byte(state)) != 1 {
		return LoginState{}, ErrStateMismatch
	}
	return ls, nil
}

// DeviceID returns the installation id, creating and persisting one on
// first use.
func DeviceID(ctx context.Context, s Store) (string, error) {
	raw, err := s.Get(ctx, KeyDeviceID)
	if err == nil {
		if id, perr := uuid.ParseBytes(raw); perr == nil {
			return id.String(), nil
		}
	} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrCorrupt) {
		return "", err
	}

	id := uuid.NewString()
	if err := s.Set(ctx, KeyDeviceID, []byte(id), 0); err != nil {
		return "", err
	}
	return id, nil
}

func setJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

func getJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	return nil
}
