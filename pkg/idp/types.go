package idp

import (
	"time"

	"github.com/aussiebroadwan/ssogate/pkg/jwtx"
)

// TokenResponse is the provider's token endpoint response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds. Zero means absent.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshExpiresIn is the refresh token lifetime in seconds, when the
	// provider reports it.
	RefreshExpiresIn int `json:"refresh_expires_in,omitempty"`

	Scope string `json:"scope,omitempty"`
}

// Expiry returns the access token expiry relative to now, falling back to the
// JWT exp claim when expires_in is absent. The zero time means unknown.
func (t *TokenResponse) Expiry(now time.Time) time.Time {
	if t.ExpiresIn > 0 {
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return jwtx.ExpiresAt(t.AccessToken)
}

// RefreshExpiry returns the refresh credential expiry, or the zero time when
// the provider did not report one.
func (t *TokenResponse) RefreshExpiry(now time.Time) time.Time {
	if t.RefreshExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(t.RefreshExpiresIn) * time.Second)
}

// Credential is a username/password pair for the password grant.
type Credential struct {
	Username string
	Password string
}

// LoginResult is a completed password login.
type LoginResult struct {
	Tokens  *TokenResponse
	Profile *Profile
}

// Profile is the userinfo response.
type Profile struct {
	UserID        string   `json:"user_id"`
	Username      string   `json:"username"`
	PreferredName string   `json:"preferred_name,omitempty"`
	Email         string   `json:"email,omitempty"`
	UserType      string   `json:"user_type,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
}

// RoleInfo is the roles endpoint response.
type RoleInfo struct {
	Roles         []string `json:"roles"`
	PrimaryRole   string   `json:"primary_role,omitempty"`
	DashboardPath string   `json:"dashboard_path,omitempty"`
}

// Menu is one node of the navigation menu tree the provider computes for a
// user.
type Menu struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Icon       string `json:"icon,omitempty"`
	Permission string `json:"permission,omitempty"`
	Hidden     bool   `json:"hidden,omitempty"`
	Children   []Menu `json:"children,omitempty"`
}

// IntrospectionResponse is the RFC 7662 response. Inactive tokens carry only
// Active=false.
type IntrospectionResponse struct {
	Active    bool     `json:"active"`
	Subject   string   `json:"sub,omitempty"`
	Username  string   `json:"username,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
}

// Verification is the outcome of Verify.
type Verification struct {
	Valid   bool
	Profile *Profile
}

// ErrorResponse is the OAuth2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// HealthResponse is the provider's health endpoint body.
type HealthResponse struct {
	Status string `json:"status"`
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

type menusResponse struct {
	Menus []Menu `json:"menus"`
}
