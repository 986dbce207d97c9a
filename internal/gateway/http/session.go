package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aussiebroadwan/ssogate/pkg/httpx"
	"github.com/aussiebroadwan/ssogate/pkg/idp"
	"github.com/aussiebroadwan/ssogate/pkg/slogx"
)

const maxBodyBytes = 16 << 10

// SessionHandler exposes the session to the browser.
type SessionHandler struct {
	Sessions Sessions
}

// HandleGet returns the current session.
//
//	@Summary		Current session
//	@Description	Returns who is logged in with which roles, permissions and menus. Tokens are never returned.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Router			/v1/session [get].
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, newSessionResponse(h.Sessions.Snapshot()))
}

// HandleLogin runs a password login.
//
//	@Summary		Password login
//	@Description	Logs in with username and password against the identity provider.
//	@Tags			Session
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			username	formData	string	true	"Username"
//	@Param			password	formData	string	true	"Password"
//	@Success		200			{object}	SessionResponse
//	@Failure		400			{object}	idp.ErrorResponse	"Missing credentials"
//	@Failure		401			{object}	idp.ErrorResponse	"Invalid credentials"
//	@Failure		502			{object}	idp.ErrorResponse	"Provider unavailable"
//	@Router			/v1/session/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, idp.ErrorCodeInvalidRequest, "malformed form")
		return
	}
	cred := idp.Credential{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if cred.Username == "" || cred.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, idp.ErrorCodeInvalidRequest, "username and password are required")
		return
	}

	snap, err := h.Sessions.Login(ctx, cred)
	switch {
	case err == nil:
		log.Info("password_login_succeeded")
		httpx.WriteJSON(w, http.StatusOK, newSessionResponse(snap))
	case idp.IsInvalidCredential(err):
		log.Warn("password_login_rejected")
		httpx.WriteError(w, http.StatusUnauthorized, idp.ErrorCodeInvalidGrant, "invalid credentials")
	default:
		log.Error("password_login_failed", "error", err)
		httpx.WriteError(w, http.StatusBadGateway, idp.ErrorCodeServerError, "identity provider unavailable")
	}
}

// HandleToken starts a session from an access token obtained elsewhere.
//
//	@Summary		Hand over a token
//	@Description	Starts a session from an access token issued by the identity provider through another channel.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TokenRequest	true	"Access token"
//	@Success		200		{object}	SessionResponse
//	@Failure		400		{object}	idp.ErrorResponse	"Missing token"
//	@Failure		500		{object}	idp.ErrorResponse	"Session could not be persisted"
//	@Router			/v1/session/token [post].
func (h *SessionHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req TokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.AccessToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, idp.ErrorCodeInvalidRequest, "access_token is required")
		return
	}

	if err := h.Sessions.SetToken(ctx, req.AccessToken); err != nil {
		log.Error("set_token_failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, idp.ErrorCodeServerError, "session could not be saved")
		return
	}

	// Resolve the identity off the request; the response reports what the
	// token itself says.
	go func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		h.Sessions.FetchUserData(fctx)
	}()

	httpx.WriteJSON(w, http.StatusOK, newSessionResponse(h.Sessions.Snapshot()))
}
