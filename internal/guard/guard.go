// Package guard decides, for every navigation, whether the browser may see
// the page, must log in, or should be sent elsewhere.
//
// Every redirect the guard emits lands either on a login, on a role
// dashboard, or on an allow-listed page. A role dashboard is always allowed
// for its own role, and root login redirects are counted and broken after
// a bounded number, so any chain of redirects terminates.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/session"
)

// Outcome is the kind of verdict.
type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	RedirectToPath
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToPath:
		return "redirect_to_path"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is the verdict for one navigation.
type Decision struct {
	Outcome Outcome

	// Path is the redirect target of RedirectToPath.
	Path string

	// ReturnURL is where a RedirectToLogin should come back to.
	ReturnURL string

	// Destination is the resolved page, zero for aliases and unknown paths.
	Destination Destination

	// Reason names the rule that decided, for logs.
	Reason string
}

func allow(d Destination, reason string) Decision {
	return Decision{Outcome: Allow, Destination: d, Reason: reason}
}

func toLogin(d Destination, returnURL, reason string) Decision {
	return Decision{Outcome: RedirectToLogin, ReturnURL: returnURL, Destination: d, Reason: reason}
}

func toPath(d Destination, p, reason string) Decision {
	return Decision{Outcome: RedirectToPath, Path: p, Destination: d, Reason: reason}
}

// Policy selects how much the guard trusts local session evidence.
type Policy string

const (
	// PolicyOptimistic allows on local evidence and reconciles in the
	// background.
	PolicyOptimistic Policy = "optimistic"

	// PolicyStrict verifies the token with the provider before allowing.
	PolicyStrict Policy = "strict"
)

// ParsePolicy maps a config value to a Policy, defaulting to optimistic.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyOptimistic:
		return PolicyOptimistic, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("guard: unknown policy %q", s)
	}
}

// Authority is the session view the guard decides against.
type Authority interface {
	Snapshot() session.Snapshot
	FetchUserData(ctx context.Context) bool
	EnsureFresh(ctx context.Context) bool
	CheckPermission(ctx context.Context, perm string) bool
	Verify(ctx context.Context) bool
}

// Config tunes a Guard.
type Config struct {
	Policy Policy

	// Threshold marks a token as expiring soon, triggering a background
	// refresh.
	Threshold time.Duration

	// FetchTimeout bounds the synchronous identity fetches the guard may
	// wait for.
	FetchTimeout time.Duration
}

type Guard struct {
	auth    Authority
	counter *LoopCounter
	routes  *Routes
	ranking session.Ranking
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	// background runs out-of-band reconciliation.
	background func(func(context.Context))
}

func New(auth Authority, counter *LoopCounter, routes *Routes, ranking session.Ranking, cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyOptimistic
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	g := &Guard{
		auth:    auth,
		counter: counter,
		routes:  routes,
		ranking: ranking,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
	g.background = func(fn func(context.Context)) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), g.cfg.FetchTimeout)
			defer cancel()
			fn(ctx)
		}()
	}
	return g
}

// Routes returns the navigation table.
func (g *Guard) Routes() *Routes {
	return g.routes
}

// Decide evaluates one navigation to target, a request URI with optional
// query. It is made once and never retried.
func (g *Guard) Decide(ctx context.Context, target string) Decision {
	d := g.decide(ctx, target)
	g.logger.Debug("navigation_decided",
		"target", target,
		"outcome", d.Outcome.String(),
		"path", d.Path,
		"reason", d.Reason,
	)
	return d
}

func (g *Guard) decide(ctx context.Context, target string) Decision {
	u, err := url.Parse(target)
	if err != nil {
		return toPath(Destination{}, PathNotFound, "unparseable")
	}
	dest, forward := g.routes.Resolve(u.Path)
	if forward != "" {
		return toPath(dest, forward, "forward")
	}
	returnURL := dest.Path
	if u.RawQuery != "" {
		returnURL += "?" + u.RawQuery
	}

	// 1. Allow-list. The loop counter is cleared by a completed login, not
	// by arriving here; a failed callback must keep counting.
	switch dest.Path {
	case PathCallback, PathError, PathNotFound:
		return allow(dest, "allow_list")
	}

	// 2. Loop breaker.
	if dest.RequiresAuth || dest.Path == PathRoot {
		tripped, err := g.counter.Tripped(ctx)
		if err != nil {
			g.logger.Warn("loop_counter_unavailable", "error", err)
		}
		if tripped {
			g.logger.Warn("redirect_loop_broken", "target", dest.Path)
			return toPath(dest, PathError, "loop_breaker")
		}
	}

	snap := g.auth.Snapshot()

	// 3. Root.
	if dest.Path == PathRoot {
		if snap.IsLoggedIn() {
			snap = g.awaitRoles(ctx, snap)
			landing := g.ranking.Dashboard(snap.PrimaryRole)
			if landing == PathRoot {
				return allow(dest, "root_no_dashboard")
			}
			return toPath(dest, landing, "root_dashboard")
		}
		if _, err := g.counter.Increment(ctx); err != nil {
			g.logger.Warn("loop_counter_unavailable", "error", err)
		}
		return toLogin(dest, PathRoot, "root_login")
	}

	// 4. Generic dashboard.
	if dest.Path == PathDashboard && (snap.IsLoggedIn() || snap.HasProfile()) {
		snap = g.awaitRoles(ctx, snap)
		if landing := g.ranking.Dashboard(snap.PrimaryRole); landing != PathRoot {
			return toPath(dest, landing, "role_dashboard")
		}
	}

	if !dest.RequiresAuth {
		return allow(dest, "public")
	}

	// 5. Authentication.
	if !snap.IsLoggedIn() && !snap.HasProfile() {
		return toLogin(dest, returnURL, "unauthenticated")
	}
	if g.cfg.Policy == PolicyStrict {
		if d, done := g.verify(ctx, dest, returnURL); done {
			return d
		}
		snap = g.auth.Snapshot()
	} else {
		g.reconcile(snap)
	}

	if dest.NeedsIdentity() {
		snap = g.awaitRoles(ctx, snap)
	}
	landing := g.ranking.Dashboard(snap.PrimaryRole)

	// 6. Roles.
	if len(dest.RequiredRoles) > 0 && !snap.HasAnyRole(dest.RequiredRoles) {
		if dest.Path == landing {
			return allow(dest, "own_dashboard")
		}
		return toPath(dest, landing, "missing_role")
	}

	// 7. Permission.
	if dest.RequiredPermission != "" && !g.auth.CheckPermission(ctx, dest.RequiredPermission) {
		if dest.Path == landing {
			return allow(dest, "own_dashboard")
		}
		return toPath(dest, landing, "missing_permission")
	}

	// 8.
	return allow(dest, "authorized")
}

// reconcile kicks off background work for a session that is usable but
// stale. The decision never waits for it.
func (g *Guard) reconcile(snap session.Snapshot) {
	if !snap.IsLoggedIn() {
		return
	}
	if !snap.ProfileComplete() {
		g.background(func(ctx context.Context) { g.auth.FetchUserData(ctx) })
	}
	if snap.IsExpiringSoon(g.now(), g.cfg.Threshold) {
		g.background(func(ctx context.Context) { g.auth.EnsureFresh(ctx) })
	}
}

// awaitRoles waits for one bounded identity fetch when no roles are known
// yet, so a fresh login is not bounced for lack of data.
func (g *Guard) awaitRoles(ctx context.Context, snap session.Snapshot) session.Snapshot {
	if snap.RolesKnown() || !snap.IsLoggedIn() {
		return snap
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.FetchTimeout)
	defer cancel()

	g.auth.FetchUserData(ctx)
	return g.auth.Snapshot()
}

// verify is the strict policy's step 5.
func (g *Guard) verify(ctx context.Context, dest Destination, returnURL string) (Decision, bool) {
	if !g.auth.EnsureFresh(ctx) {
		if !g.auth.Snapshot().IsLoggedIn() {
			return toLogin(dest, returnURL, "refresh_rejected"), true
		}
	}

	vctx, cancel := context.WithTimeout(ctx, g.cfg.FetchTimeout)
	defer cancel()
	if g.auth.Verify(vctx) {
		return Decision{}, false
	}
	if !g.auth.Snapshot().IsLoggedIn() {
		return toLogin(dest, returnURL, "token_rejected"), true
	}
	// Provider unreachable: strict refuses to guess.
	return toPath(dest, PathError, "verify_unavailable"), true
}
