package guard

import (
	"context"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
)

// Loop breaker defaults.
const (
	DefaultMaxRedirects = 3
	DefaultWindow       = 5 * time.Minute
)

// LoopCounter counts unauthenticated root redirects in a fixed window that
// starts at the first redirect. It lives in the credential store so it
// survives restarts and is shared by every gateway using that store. Only a
// completed login clears it (see credstore.ClearCounter).
//
// Updates are read-compute-write. Concurrent navigations may lose an
// increment, which only delays the breaker by a redirect.
type LoopCounter struct {
	store  credstore.Store
	max    int
	window time.Duration
	now    func() time.Time
}

func NewLoopCounter(store credstore.Store, max int, window time.Duration) *LoopCounter {
	if max <= 0 {
		max = DefaultMaxRedirects
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &LoopCounter{store: store, max: max, window: window, now: time.Now}
}

// Count returns the redirects inside the live window.
func (c *LoopCounter) Count(ctx context.Context) (int, error) {
	rc, err := credstore.LoadCounter(ctx, c.store, c.now(), c.window)
	if err != nil {
		return 0, err
	}
	return rc.Count, nil
}

// Tripped reports whether the breaker is open.
func (c *LoopCounter) Tripped(ctx context.Context) (bool, error) {
	n, err := c.Count(ctx)
	if err != nil {
		return false, err
	}
	return n >= c.max, nil
}

// Increment records one redirect and returns the new count.
func (c *LoopCounter) Increment(ctx context.Context) (int, error) {
	now := c.now()
	rc, err := credstore.LoadCounter(ctx, c.store, now, c.window)
	if err != nil {
		return 0, err
	}
	if rc.Count == 0 || now.Sub(rc.WindowStart) >= c.window {
		rc = credstore.RedirectCounter{WindowStart: now}
	}
	rc.Count++

	// Expire with the window, not a full window from now.
	remaining := c.window - now.Sub(rc.WindowStart)
	if err := credstore.SaveCounter(ctx, c.store, rc, remaining); err != nil {
		return 0, err
	}
	return rc.Count, nil
}
