package http

import (
	"net/http"

	"github.com/aussiebroadwan/ssogate/pkg/httpx"
	"github.com/aussiebroadwan/ssogate/pkg/slogx"
)

// LogoutHandler ends the session.
type LogoutHandler struct {
	Sessions Sessions
}

// ServeHTTP handles logout.
//
//	@Summary		Logout
//	@Description	Revokes the refresh credential (best effort), clears the session and redirects to the provider's logout page.
//	@Tags			Session
//	@Success		302	"Redirect to the provider logout page"
//	@Router			/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	next := h.Sessions.Logout(r.Context())
	slogx.FromContext(r.Context()).Info("logged_out")
	httpx.Redirect(w, r, next)
}
