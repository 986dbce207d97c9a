// Package identity resolves who the session's token belongs to.
//
// The Resolver fetches the profile, permissions, roles and menus from the
// provider and applies them to the session in one step. Only the profile is
// mandatory; the other calls degrade to "not loaded" and are retried by the
// next fetch.
package identity

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/session"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds one whole resolution.
const DefaultTimeout = 10 * time.Second

const (
	userDataKey    = "user-data"
	permissionsKey = "permissions"
	verifyKey      = "verify"
)

// Client is the subset of the provider API the resolver calls.
type Client interface {
	FetchProfile(ctx context.Context, token string) (*idp.Profile, error)
	FetchPermissions(ctx context.Context, token string) ([]string, error)
	FetchRoles(ctx context.Context, token string) (*idp.RoleInfo, error)
	FetchMenus(ctx context.Context, token string) ([]idp.Menu, error)
	Verify(ctx context.Context, token string) (*idp.Verification, error)
}

// Deps are the collaborators of a Resolver.
type Deps struct {
	State  *session.State
	Client Client
	Logger *slog.Logger

	// OnInvalid is called when the provider rejects the current token. It
	// must clear the session.
	OnInvalid func(context.Context)
}

type Resolver struct {
	deps    Deps
	timeout time.Duration
	group   singleflight.Group
}

func NewResolver(deps Deps, timeout time.Duration) *Resolver {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{deps: deps, timeout: timeout}
}

// FetchUserData resolves the full identity of the current session and
// reports whether the mandatory profile was obtained. Concurrent callers
// share one resolution; ctx only bounds the wait.
func (r *Resolver) FetchUserData(ctx context.Context) bool {
	return r.shared(ctx, userDataKey, r.fetchUserData)
}

// CheckPermission reports whether the user holds perm. Cached permissions
// answer directly; otherwise the permission list is fetched once. Anything
// short of a loaded list means not authorized.
func (r *Resolver) CheckPermission(ctx context.Context, perm string) bool {
	snap := r.deps.State.Snapshot()
	if !snap.IsLoggedIn() {
		return false
	}
	if snap.PermissionsLoaded {
		return snap.HasPermission(perm)
	}

	if !r.shared(ctx, permissionsKey, r.fetchPermissions) {
		return false
	}
	snap = r.deps.State.Snapshot()
	return snap.PermissionsLoaded && snap.HasPermission(perm)
}

// Verify asks the provider whether the current token is still valid. A
// valid answer refreshes the profile; an invalid one clears the session.
// A provider that cannot be reached yields false and leaves the session.
func (r *Resolver) Verify(ctx context.Context) bool {
	return r.shared(ctx, verifyKey, r.verify)
}

func (r *Resolver) shared(ctx context.Context, key string, fn func(context.Context) bool) bool {
	ch := r.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		return fn(fctx), nil
	})

	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

func (r *Resolver) fetchUserData(ctx context.Context) bool {
	snap := r.deps.State.Snapshot()
	if !snap.IsLoggedIn() {
		return false
	}
	log := r.deps.Logger.With("generation", snap.Generation)

	var (
		data    session.UserData
		profile *idp.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.deps.Client.FetchProfile(gctx, snap.Token)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		perms, err := r.deps.Client.FetchPermissions(gctx, snap.Token)
		switch {
		case idp.IsForbidden(err):
			log.Info("permissions_forbidden")
			perms = nil
		case err != nil:
			log.Warn("permissions_unavailable", "error", err)
			return nil
		}
		data.Permissions = nonNil(perms)
		data.PermissionsLoaded = true
		return nil
	})
	g.Go(func() error {
		info, err := r.deps.Client.FetchRoles(gctx, snap.Token)
		if err != nil {
			log.Warn("roles_unavailable", "error", err)
			return nil
		}
		data.Roles = nonNil(info.Roles)
		data.RolesLoaded = true
		data.DashboardPath = info.DashboardPath
		return nil
	})
	g.Go(func() error {
		menus, err := r.deps.Client.FetchMenus(gctx, snap.Token)
		if err != nil {
			log.Warn("menus_unavailable", "error", err)
			return nil
		}
		data.Menus = convertMenus(menus)
		return nil
	})

	if err := g.Wait(); err != nil {
		switch {
		case idp.IsInvalidCredential(err):
			log.Warn("profile_rejected", "error", err)
			r.invalidate(ctx, snap.Generation)
		case idp.IsForbidden(err):
			log.Warn("profile_forbidden", "error", err)
		default:
			log.Error("profile_unavailable", "error", err)
		}
		return false
	}

	data.UserInfo = UserInfoFromProfile(profile)
	if !r.deps.State.ApplyUserData(snap.Generation, data) {
		log.Info("user_data_discarded")
		return false
	}

	log.Debug("user_data_resolved",
		"user_id", data.UserInfo.ID,
		"roles_loaded", data.RolesLoaded,
		"permissions_loaded", data.PermissionsLoaded,
	)
	return true
}

func (r *Resolver) fetchPermissions(ctx context.Context) bool {
	snap := r.deps.State.Snapshot()
	if !snap.IsLoggedIn() {
		return false
	}

	// A 403 is an answer: the session holds no permissions.
	perms, err := r.deps.Client.FetchPermissions(ctx, snap.Token)
	switch {
	case idp.IsForbidden(err):
		r.deps.Logger.Info("permissions_forbidden", "generation", snap.Generation)
		perms = nil
	case err != nil:
		if idp.IsInvalidCredential(err) {
			r.invalidate(ctx, snap.Generation)
		}
		r.deps.Logger.Warn("permissions_unavailable", "error", err)
		return false
	}
	return r.deps.State.ApplyUserData(snap.Generation, session.UserData{
		Permissions:       nonNil(perms),
		PermissionsLoaded: true,
	})
}

func (r *Resolver) verify(ctx context.Context) bool {
	snap := r.deps.State.Snapshot()
	if !snap.IsLoggedIn() {
		return false
	}

	v, err := r.deps.Client.Verify(ctx, snap.Token)
	switch {
	case err != nil && idp.IsInvalidCredential(err):
	case idp.IsForbidden(err):
		r.deps.Logger.Warn("verify_forbidden", "generation", snap.Generation)
		return false
	case err != nil:
		r.deps.Logger.Warn("verify_unavailable", "error", err)
		return false
	case v.Valid:
		if v.Profile != nil {
			r.deps.State.ApplyUserInfo(snap.Generation, mergeProfile(snap.UserInfo, v.Profile))
		}
		return true
	}

	r.deps.Logger.Info("token_rejected", "generation", snap.Generation)
	r.invalidate(ctx, snap.Generation)
	return false
}

func (r *Resolver) invalidate(ctx context.Context, gen uint64) {
	if r.deps.State.Generation() != gen {
		return
	}
	if r.deps.OnInvalid != nil {
		r.deps.OnInvalid(ctx)
		return
	}
	r.deps.State.Clear()
}

// UserInfoFromProfile converts a provider profile to the session's form.
func UserInfoFromProfile(p *idp.Profile) *session.UserInfo {
	return &session.UserInfo{
		ID:          p.UserID,
		Username:    p.Username,
		DisplayName: p.PreferredName,
		Email:       p.Email,
		UserType:    p.UserType,
		Roles:       nonNil(p.Roles),
		Permissions: nonNil(p.Permissions),
	}
}

// mergeProfile overlays an introspection profile on the cached one.
// Introspection carries fewer fields, so known ones are kept.
func mergeProfile(cur *session.UserInfo, p *idp.Profile) *session.UserInfo {
	next := UserInfoFromProfile(p)
	if cur == nil {
		return next
	}
	merged := *cur
	if next.ID != "" {
		merged.ID = next.ID
	}
	if next.Username != "" {
		merged.Username = next.Username
	}
	if len(next.Roles) > 0 {
		merged.Roles = next.Roles
	}
	return &merged
}

func convertMenus(in []idp.Menu) []session.Menu {
	out := make([]session.Menu, 0, len(in))
	for _, m := range in {
		if m.Hidden {
			continue
		}
		out = append(out, session.Menu{
			ID:         m.ID,
			Name:       m.Name,
			Path:       m.Path,
			Icon:       m.Icon,
			Permission: m.Permission,
			Children:   convertMenus(m.Children),
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
