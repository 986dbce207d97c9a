package http

import (
	"net/http"

	"github.com/aussiebroadwan/ssogate/internal/guard"
	"github.com/aussiebroadwan/ssogate/pkg/httpx"
	"github.com/aussiebroadwan/ssogate/pkg/slogx"
)

// NavigationHandler answers every page request with the guard's verdict.
type NavigationHandler struct {
	Sessions Sessions
	Guard    Navigator
}

// ServeHTTP handles a page navigation.
//
//	@Summary		Navigate to a page
//	@Description	Runs the authorization guard for the requested page. Allowed pages are answered with a placeholder view;
//	@Description	otherwise the browser is redirected to the provider login or to another page.
//	@Tags			Navigation
//	@Produce		json
//	@Param			path	path		string			true	"Page path"
//	@Success		200		{object}	ViewResponse	"Page allowed"
//	@Success		302		"Redirect to login or to a landing page"
//	@Router			/{path} [get].
func (h *NavigationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	d := h.Guard.Decide(ctx, r.URL.RequestURI())
	switch d.Outcome {
	case guard.Allow:
		snap := h.Sessions.Snapshot()
		view := ViewResponse{Page: d.Destination.Name, Path: d.Destination.Path}
		if snap.UserInfo != nil {
			view.Username = snap.UserInfo.Username
		}
		if snap.IsLoggedIn() {
			view.PrimaryRole = snap.PrimaryRole
		}
		code := http.StatusOK
		if d.Destination.Path == guard.PathNotFound {
			code = http.StatusNotFound
		}
		httpx.WriteJSON(w, code, view)

	case guard.RedirectToLogin:
		loginURL, err := h.Sessions.BeginLogin(ctx, d.ReturnURL)
		if err != nil {
			log.Error("begin_login_failed", "error", err)
			httpx.Redirect(w, r, guard.PathError)
			return
		}
		httpx.Redirect(w, r, loginURL)

	case guard.RedirectToPath:
		httpx.Redirect(w, r, d.Path)
	}
}
