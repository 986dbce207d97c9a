package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
	"github.com/aussiebroadwan/ssogate/internal/guard"
	"github.com/aussiebroadwan/ssogate/internal/session"
	"github.com/aussiebroadwan/ssogate/internal/sso"
	"github.com/aussiebroadwan/ssogate/pkg/httpx"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/aussiebroadwan/ssogate/pkg/slogx"
)

// CallbackHandler completes an interactive login. Only a completed login
// clears the redirect loop counter; every failure path leaves it counting.
type CallbackHandler struct {
	Sessions Sessions
}

// ServeHTTP handles the provider's redirect back after login.
//
//	@Summary		Login callback
//	@Description	Redeems the authorization code with the pending PKCE verifier, starts the session and
//	@Description	redirects to the page that triggered the login.
//	@Tags			Session
//	@Param			code	query	string	false	"Authorization code"
//	@Param			state	query	string	false	"Login state"
//	@Param			error	query	string	false	"Provider error code"
//	@Success		302		"Redirect to the return URL, or to the error page"
//	@Router			/callback [get].
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	code, state, err := idp.ParseCallbackQuery(r.URL.Query())
	if err != nil {
		log.Warn("callback_rejected", "error", err)
		httpx.Redirect(w, r, guard.PathError)
		return
	}

	returnURL, err := h.Sessions.CompleteLogin(ctx, code, state)
	switch {
	case err == nil:
		log.Info("login_completed", "return_url", returnURL)
		httpx.Redirect(w, r, returnURL)
	case errors.Is(err, sso.ErrNoPendingLogin):
		// Stale or replayed callback. A live session carries on; otherwise
		// start over from the root, which counts towards the loop breaker.
		log.Warn("callback_without_login", "error", err)
		httpx.Redirect(w, r, session.RootPath)
	case errors.Is(err, credstore.ErrStateMismatch):
		log.Warn("callback_state_mismatch")
		httpx.Redirect(w, r, guard.PathError)
	default:
		log.Error("login_failed", "error", err)
		httpx.Redirect(w, r, guard.PathError)
	}
}
