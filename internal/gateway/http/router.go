package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/guard"
	"github.com/aussiebroadwan/ssogate/internal/session"
	"github.com/aussiebroadwan/ssogate/pkg/httpx"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/aussiebroadwan/ssogate/pkg/slogx"

	_ "github.com/aussiebroadwan/ssogate/api/gateway" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Sessions is the session authority the handlers drive.
type Sessions interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, cred idp.Credential) (session.Snapshot, error)
	SetToken(ctx context.Context, token string) error
	FetchUserData(ctx context.Context) bool
	BeginLogin(ctx context.Context, returnURL string) (string, error)
	CompleteLogin(ctx context.Context, code, state string) (string, error)
	Logout(ctx context.Context) string
}

// Navigator decides navigations.
type Navigator interface {
	Decide(ctx context.Context, target string) guard.Decision
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limits are the rate limit budgets of the router's endpoint classes.
type Limits struct {
	Strict httpx.RateLimitConfig
	Public httpx.RateLimitConfig
}

// DefaultLimits reads RATELIMIT_STRICT_* and RATELIMIT_PUBLIC_* overrides.
// Forwarding headers count only from RATELIMIT_TRUSTED_PROXIES.
func DefaultLimits() Limits {
	return Limits{
		Strict: httpx.RateLimitFromEnv("STRICT", httpx.StrictLimit),
		Public: httpx.RateLimitFromEnv("PUBLIC", httpx.PublicLimit),
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        Pinger

	Sessions Sessions
	Guard    Navigator
	Limits   Limits
}

func NewRouter(buildVersion string, store Pinger, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        store,
		Limits:       DefaultLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerSession()
	r.registerNavigation()

	r.Mux.Handle("GET /swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			ssogate Session Gateway API
//	@version		0.1.0
//	@description	Single sign-on session gateway. Every page navigation is checked against the
//	@description	current session and answered with the page, a redirect to the identity
//	@description	provider's login, or a redirect to the user's role landing page.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/ssogate
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSystem() {
	r.Mux.HandleFunc("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.HandleFunc("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}

func (r *Router) registerSession() {
	sh := &SessionHandler{Sessions: r.Sessions}

	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(sh.HandleGet),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)

	// Starting a session is a credential operation.
	r.Mux.Handle("POST /v1/session/login",
		httpx.Chain(http.HandlerFunc(sh.HandleLogin),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/session/token",
		httpx.Chain(http.HandlerFunc(sh.HandleToken),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	ch := &CallbackHandler{Sessions: r.Sessions}
	r.Mux.Handle("GET "+guard.PathCallback,
		httpx.Chain(ch,
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	lh := &LogoutHandler{Sessions: r.Sessions}
	r.Mux.Handle("POST /logout",
		httpx.Chain(lh,
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
}

func (r *Router) registerNavigation() {
	nh := &NavigationHandler{Sessions: r.Sessions, Guard: r.Guard}
	r.Mux.Handle("GET /",
		httpx.Chain(nh,
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}
