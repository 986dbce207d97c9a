// Package refresh keeps the session's access token fresh.
//
// The Coordinator guarantees at most one refresh exchange in flight. Every
// caller that asks while one is outstanding waits for and shares its result.
// The exchange runs detached from the callers, so a caller that gives up
// does not cancel it, and its outcome is applied to the session once.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
	"github.com/aussiebroadwan/ssogate/internal/session"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/aussiebroadwan/ssogate/pkg/idx"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalid means the provider definitively rejected the refresh
	// credential. The session has been cleared.
	ErrInvalid = errors.New("refresh: credential rejected")

	// ErrExhausted means every attempt failed transiently. The session is
	// untouched.
	ErrExhausted = errors.New("refresh: retries exhausted")

	// ErrNoCredential means the session holds no refresh credential. The
	// token stays usable until it expires.
	ErrNoCredential = errors.New("refresh: no refresh credential")

	// ErrNoSession means nobody is logged in.
	ErrNoSession = errors.New("refresh: no session")

	// ErrSuperseded means the session was cleared or replaced while the
	// exchange was in flight; its result was discarded.
	ErrSuperseded = errors.New("refresh: session changed during refresh")
)

const flightKey = "refresh"

// Client is the provider call the coordinator depends on.
type Client interface {
	Refresh(ctx context.Context, refreshToken, fingerprint string) (*idp.TokenResponse, error)
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	State  *session.State
	Store  credstore.Store
	Client Client
	Logger *slog.Logger

	// Fingerprint returns the device fingerprint sent with each refresh.
	// Optional.
	Fingerprint func(context.Context) string

	// OnInvalid is called when the provider rejects the refresh credential
	// of the current session. It must clear the session.
	OnInvalid func(context.Context)
}

type Coordinator struct {
	deps   Deps
	policy Policy
	now    func() time.Time

	group singleflight.Group

	timerMu sync.Mutex
	timer   *time.Timer
}

func NewCoordinator(deps Deps, policy Policy) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Coordinator{
		deps:   deps,
		policy: policy.withDefaults(),
		now:    time.Now,
	}
}

// Policy returns the effective policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// EnsureFresh reports whether the session holds a usable token, refreshing
// first when it is inside the threshold. A token well away from expiry, or
// with unknown expiry, costs no I/O.
func (c *Coordinator) EnsureFresh(ctx context.Context) bool {
	snap := c.deps.State.Snapshot()
	if !snap.IsLoggedIn() {
		return false
	}

	now := c.now()
	if !snap.IsExpiringSoon(now, c.policy.Threshold) {
		return true
	}

	if _, err := c.Refresh(ctx); err != nil {
		if errors.Is(err, ErrInvalid) || errors.Is(err, ErrSuperseded) {
			return false
		}
		// Still usable until it actually expires.
		return now.Before(snap.ExpiresAt)
	}
	return true
}

// Refresh joins the in-flight exchange or starts one, and returns the
// session as it stands after the exchange. ctx only bounds the wait.
func (c *Coordinator) Refresh(ctx context.Context) (session.Snapshot, error) {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.exchange()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return session.Snapshot{}, res.Err
		}
		return res.Val.(session.Snapshot), nil
	case <-ctx.Done():
		return session.Snapshot{}, ctx.Err()
	}
}

func (c *Coordinator) exchange() (session.Snapshot, error) {
	ctx := context.Background()
	snap := c.deps.State.Snapshot()
	log := c.deps.Logger.With("ticket", idx.New().String(), "generation", snap.Generation)

	if !snap.IsLoggedIn() {
		return session.Snapshot{}, ErrNoSession
	}
	if snap.RefreshCredential == "" {
		log.Debug("refresh_skipped", "reason", "no refresh credential")
		return session.Snapshot{}, ErrNoCredential
	}

	var fingerprint string
	if c.deps.Fingerprint != nil {
		fingerprint = c.deps.Fingerprint(ctx)
	}

	var (
		tokens   *idp.TokenResponse
		attempts int
	)
	op := func() error {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
		defer cancel()

		resp, err := c.deps.Client.Refresh(callCtx, snap.RefreshCredential, fingerprint)
		switch {
		case err == nil:
			tokens = resp
			return nil
		case idp.IsInvalidCredential(err), !idp.IsTransient(err):
			return backoff.Permanent(err)
		default:
			return err
		}
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("refresh_retry", "attempt", attempts, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, c.policy.backOff(), notify); err != nil {
		switch {
		case idp.IsInvalidCredential(err):
			log.Warn("refresh_rejected", "error", err)
			c.invalidate(ctx, snap.Generation)
			return session.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		case idp.IsTransient(err):
			log.Error("refresh_exhausted", "attempts", attempts, "error", err)
			return session.Snapshot{}, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
		default:
			log.Error("refresh_failed", "error", err)
			return session.Snapshot{}, fmt.Errorf("refresh: %w", err)
		}
	}

	now := c.now()
	applied, ok := c.deps.State.ApplyTokens(snap.Generation, session.Tokens{
		Token:             tokens.AccessToken,
		RefreshCredential: tokens.RefreshToken,
		ExpiresAt:         tokens.Expiry(now),
	})
	if !ok {
		log.Info("refresh_discarded")
		return session.Snapshot{}, ErrSuperseded
	}

	c.persist(ctx, applied, credstore.TokenRecord{
		Token:             applied.Token,
		RefreshCredential: applied.RefreshCredential,
		ExpiresAt:         applied.ExpiresAt,
		RefreshExpiresAt:  tokens.RefreshExpiry(now),
		SavedAt:           now,
	})
	c.Arm(applied)

	log.Info("refresh_succeeded", "attempts", attempts, "expires_at", applied.ExpiresAt)
	return applied, nil
}

// persist writes rec, then undoes the write if the session was cleared
// meanwhile so a logout is never resurrected from the store.
func (c *Coordinator) persist(ctx context.Context, applied session.Snapshot, rec credstore.TokenRecord) {
	if err := credstore.SaveToken(ctx, c.deps.Store, rec); err != nil {
		c.deps.Logger.Error("refresh_persist_failed", "error", err)
		return
	}
	if c.deps.State.Generation() != applied.Generation {
		_ = credstore.ClearToken(ctx, c.deps.Store)
	}
}

func (c *Coordinator) invalidate(ctx context.Context, gen uint64) {
	// A rejection of an older session's credential says nothing about the
	// current one.
	if c.deps.State.Generation() != gen {
		return
	}
	if c.deps.OnInvalid != nil {
		c.deps.OnInvalid(ctx)
		return
	}
	c.deps.State.Clear()
}

// Arm schedules an automatic refresh at expiry minus the threshold,
// replacing any earlier schedule. Sessions with unknown expiry or nothing to
// refresh with are not scheduled.
func (c *Coordinator) Arm(snap session.Snapshot) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if snap.ExpiresAt.IsZero() || snap.RefreshCredential == "" {
		return
	}

	delay := max(snap.ExpiresAt.Sub(c.now())-c.policy.Threshold, 0)
	gen := snap.Generation
	c.timer = time.AfterFunc(delay, func() { c.autoRefresh(gen) })
	c.deps.Logger.Debug("refresh_armed", "in", delay, "generation", gen)
}

// Disarm cancels the scheduled refresh.
func (c *Coordinator) Disarm() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) autoRefresh(gen uint64) {
	// The timer may fire after a Disarm that lost the race.
	if c.deps.State.Generation() != gen {
		return
	}
	if _, err := c.Refresh(context.Background()); err != nil {
		c.deps.Logger.Warn("auto_refresh_failed", "error", err)
	}
}
