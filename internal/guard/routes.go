package guard

import (
	"path"
	"slices"
	"strings"

	"github.com/aussiebroadwan/ssogate/internal/session"
)

// Fixed destinations the guard itself refers to.
const (
	PathRoot      = session.RootPath
	PathDashboard = "/dashboard"
	PathCallback  = "/callback"
	PathError     = "/error"
	PathNotFound  = "/404"
)

// Destination is a navigable page and what it takes to see it.
type Destination struct {
	Path               string   `json:"path"`
	Name               string   `json:"name"`
	RequiresAuth       bool     `json:"requiresAuth"`
	RequiredRoles      []string `json:"requiredRoles,omitempty"`
	RequiredPermission string   `json:"requiredPermission,omitempty"`
}

// NeedsIdentity reports whether deciding on d needs the user's roles or
// permissions.
func (d Destination) NeedsIdentity() bool {
	return len(d.RequiredRoles) > 0 || d.RequiredPermission != ""
}

// Routes maps request paths to destinations. Aliases are parent paths that
// forward to a default child.
type Routes struct {
	byPath  map[string]Destination
	aliases map[string]string
}

func NewRoutes(dests []Destination, aliases map[string]string) *Routes {
	r := &Routes{
		byPath:  make(map[string]Destination, len(dests)),
		aliases: make(map[string]string, len(aliases)),
	}
	for _, d := range dests {
		r.byPath[d.Path] = d
	}
	for from, to := range aliases {
		r.aliases[from] = to
	}
	return r
}

// Resolve returns the destination at p. When p is an alias or unknown, it
// returns the path the browser should be sent to instead.
func (r *Routes) Resolve(p string) (Destination, string) {
	p = Clean(p)
	if to, ok := r.aliases[p]; ok {
		return Destination{}, to
	}
	if d, ok := r.byPath[p]; ok {
		return d, ""
	}
	return Destination{}, PathNotFound
}

// destinations lists every destination sorted by path.
func (r *Routes) destinations() []Destination {
	out := make([]Destination, 0, len(r.byPath))
	for _, d := range r.byPath {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Destination) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Clean normalises a request path: rooted, no dot segments, no trailing
// slash.
func Clean(p string) string {
	if p == "" {
		return PathRoot
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// DefaultRoutes is the application's navigation table.
func DefaultRoutes() *Routes {
	admin := []string{session.RoleAdmin}
	enterprise := []string{session.RoleEnterprise}
	airline := []string{session.RoleAirline}

	authed := func(p, name string) Destination {
		return Destination{Path: p, Name: name, RequiresAuth: true}
	}
	withRoles := func(p, name string, roles []string) Destination {
		return Destination{Path: p, Name: name, RequiresAuth: true, RequiredRoles: roles}
	}
	withPerm := func(p, name, perm string) Destination {
		return Destination{Path: p, Name: name, RequiresAuth: true, RequiredRoles: admin, RequiredPermission: perm}
	}

	return NewRoutes([]Destination{
		{Path: PathRoot, Name: "home"},
		authed(PathDashboard, "dashboard"),
		withRoles("/dashboard/admin", "admin-dashboard", admin),
		withRoles("/dashboard/personal", "personal-dashboard", []string{session.RolePersonal}),
		withRoles("/dashboard/enterprise", "enterprise-dashboard", enterprise),
		withRoles("/dashboard/airline", "airline-dashboard", airline),

		authed("/user/profile", "user-profile"),
		authed("/user/security", "user-security"),
		authed("/user/oauth", "user-oauth"),
		authed("/user/device", "user-device"),
		authed("/user/loginlog", "user-login-log"),

		withPerm("/system/user", "system-user", "system:user:list"),
		withPerm("/system/role", "system-role", "system:role:list"),
		withPerm("/system/menu", "system-menu", "system:menu:list"),

		withRoles("/enterprise/info", "enterprise-info", enterprise),
		withRoles("/enterprise/member", "enterprise-member", enterprise),
		withRoles("/enterprise/auth", "enterprise-auth", enterprise),

		withRoles("/airline/info", "airline-info", airline),
		withRoles("/airline/flight", "airline-flight", airline),
		withRoles("/airline/passenger", "airline-passenger", airline),

		withRoles("/monitor/online", "monitor-online", admin),
		withRoles("/monitor/loginlog", "monitor-login-log", admin),
		withRoles("/monitor/server", "monitor-server", admin),

		{Path: PathCallback, Name: "callback"},
		{Path: "/sso-test", Name: "sso-test"},
		{Path: PathError, Name: "error"},
		{Path: PathNotFound, Name: "not-found"},
	}, map[string]string{
		"/user":       "/user/profile",
		"/system":     "/system/user",
		"/enterprise": "/enterprise/info",
		"/airline":    "/airline/info",
		"/monitor":    "/monitor/online",
	})
}
