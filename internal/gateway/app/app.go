package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
	httpapi "github.com/aussiebroadwan/ssogate/internal/gateway/http"
	"github.com/aussiebroadwan/ssogate/internal/guard"
	"github.com/aussiebroadwan/ssogate/internal/refresh"
	"github.com/aussiebroadwan/ssogate/internal/session"
	"github.com/aussiebroadwan/ssogate/internal/sso"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/aussiebroadwan/ssogate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the gateway process with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store        credstore.Store
	sessions     *sso.Manager
	guard        *guard.Guard
	housekeeping *Housekeeping // nil when the store expires keys itself

	server *http.Server
	router *httpapi.Router
}

// New opens the store, restores any persisted session and builds the HTTP
// server.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "ssogate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	return app, app.init(ctx)
}

// NewWithLogger is New with a caller supplied logger.
func NewWithLogger(ctx context.Context, cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}
	return app, app.init(ctx)
}

func (app *Application) init(ctx context.Context) error {
	store, err := OpenStore(ctx, app.cfg)
	if err != nil {
		return err
	}
	app.store = store
	app.logger.Info("credential store ready", "driver", app.cfg.StoreDriver, "sealed", app.cfg.SealKey != "")

	if err := app.initSessions(ctx); err != nil {
		_ = store.Close()
		return err
	}
	app.initHTTP()
	return nil
}

// initSessions wires the session manager and guard, then restores the
// persisted session.
func (app *Application) initSessions(ctx context.Context) error {
	policy, err := guard.ParsePolicy(app.cfg.Policy)
	if err != nil {
		return err
	}
	ranking := session.DefaultRanking()

	provider := idp.New(app.cfg.ProviderURL, app.cfg.ClientID, app.cfg.RequestTimeout)
	app.sessions = sso.New(sso.Config{
		PublicURL: app.cfg.PublicURL,
		LogoutURL: app.cfg.LogoutURL,
		Scopes:    app.cfg.Scopes,
		Refresh: refresh.Policy{
			Threshold:   app.cfg.RefreshThreshold,
			MaxAttempts: app.cfg.RefreshMaxAttempts,
			BaseDelay:   app.cfg.RefreshBaseDelay,
			Timeout:     app.cfg.RequestTimeout,
		},
		RequestTimeout: app.cfg.RequestTimeout,
		Ranking:        ranking,
	}, app.store, provider, app.logger.With("component", "sso"))

	app.guard = guard.New(app.sessions,
		guard.NewLoopCounter(app.store, app.cfg.MaxRedirects, app.cfg.RedirectWindow),
		guard.DefaultRoutes(),
		ranking,
		guard.Config{
			Policy:       policy,
			Threshold:    app.cfg.RefreshThreshold,
			FetchTimeout: app.cfg.RequestTimeout,
		},
		app.logger.With("component", "guard"),
	)

	if p, ok := app.store.(credstore.Purger); ok {
		app.housekeeping = NewHousekeeping(p, app.logger.With("component", "housekeeping"), app.cfg.HousekeepingInterval)
	}

	if err := app.sessions.Init(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	snap := app.sessions.Snapshot()
	app.logger.Info("session state restored", "logged_in", snap.IsLoggedIn(), "primary_role", snap.PrimaryRole)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.store, app.logger)
	router.Sessions = app.sessions
	router.Guard = app.guard
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler returns the gateway's HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Sessions returns the session manager.
func (app *Application) Sessions() *sso.Manager {
	return app.sessions
}

// Run serves until a shutdown signal or a server failure.
func (app *Application) Run() error {
	if app.housekeeping != nil {
		app.housekeeping.Start()
	}

	app.logger.Info("ssogate starting", "port", app.cfg.Port, "version", BuildVersion, "policy", app.cfg.Policy)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown drains in-flight requests, stops background work and closes the
// store. The persisted session is left in place for the next start.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down ssogate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeeping != nil {
		app.housekeeping.Stop()
	}
	app.sessions.Close()

	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing credential store", "error", err)
		return err
	}

	app.logger.Info("ssogate stopped")
	return nil
}
