package http

import (
	"time"

	"github.com/aussiebroadwan/ssogate/internal/session"
)

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// SessionResponse is the client-visible session. Credentials are never
// included.
type SessionResponse struct {
	LoggedIn        bool              `json:"loggedIn"`
	ProfileComplete bool              `json:"profileComplete"`
	User            *session.UserInfo `json:"user,omitempty"`
	Roles           []string          `json:"roles"`
	Permissions     []string          `json:"permissions"`
	PrimaryRole     string            `json:"primaryRole,omitempty"`
	DashboardPath   string            `json:"dashboardPath,omitempty"`
	Menus           []session.Menu    `json:"menus,omitempty"`
	ExpiresAt       *time.Time        `json:"expiresAt,omitempty"`
}

func newSessionResponse(snap session.Snapshot) SessionResponse {
	resp := SessionResponse{
		LoggedIn:        snap.IsLoggedIn(),
		ProfileComplete: snap.ProfileComplete(),
		User:            snap.UserInfo,
		Roles:           orEmpty(snap.EffectiveRoles()),
		Permissions:     orEmpty(snap.Permissions),
		Menus:           snap.Menus,
		DashboardPath:   snap.DashboardPath,
	}
	if resp.LoggedIn {
		resp.PrimaryRole = snap.PrimaryRole
	}
	if !snap.ExpiresAt.IsZero() {
		exp := snap.ExpiresAt.UTC()
		resp.ExpiresAt = &exp
	}
	return resp
}

// ViewResponse stands in for a rendered page.
type ViewResponse struct {
	Page        string `json:"page"`
	Path        string `json:"path"`
	Username    string `json:"username,omitempty"`
	PrimaryRole string `json:"primaryRole,omitempty"`
}

// TokenRequest hands an access token obtained elsewhere to the gateway.
type TokenRequest struct {
	AccessToken string `json:"access_token"`
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
