// Package session holds the gateway's in-memory belief about who is logged
// in.
//
// State is the single owner of that belief. Readers take a Snapshot, an
// immutable copy that stays consistent for the whole of a decision.
// Writers replace fields in one critical section and are tagged with the
// generation they were started under; a write from an older generation is
// dropped so a result that lands after logout never resurrects the session.
package session

import (
	"slices"
	"time"
)

// UserInfo is the profile of the logged in user.
type UserInfo struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	UserType    string   `json:"userType,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Menu is one node of the user's navigation menu.
type Menu struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Icon       string `json:"icon,omitempty"`
	Permission string `json:"permission,omitempty"`
	Children   []Menu `json:"children,omitempty"`
}

// Tokens is the credential half of a session.
type Tokens struct {
	Token             string
	RefreshCredential string
	ExpiresAt         time.Time // zero when unknown
}

// UserData is the identity half of a session, as fetched from the provider.
// The Loaded flags distinguish "fetched and empty" from "not fetched".
type UserData struct {
	UserInfo          *UserInfo
	Roles             []string
	RolesLoaded       bool
	Permissions       []string
	PermissionsLoaded bool
	Menus             []Menu
	DashboardPath     string
}

// Snapshot is a point-in-time copy of the session. Slices are shared with
// the State and must not be modified.
type Snapshot struct {
	Tokens
	UserData

	PrimaryRole string
	Generation  uint64
}

// IsLoggedIn reports whether a token is held. The profile may lag behind.
func (s Snapshot) IsLoggedIn() bool {
	return s.Token != ""
}

// HasProfile reports whether a userinfo has been fetched for this session.
func (s Snapshot) HasProfile() bool {
	return s.UserInfo != nil
}

// ProfileComplete reports whether every part of the identity has loaded.
// Secondary fetches that degraded leave this false so the next navigation
// retries them.
func (s Snapshot) ProfileComplete() bool {
	return s.UserInfo != nil && s.RolesLoaded && s.PermissionsLoaded
}

// IsExpiringSoon reports whether the token expires within threshold of now.
// An unknown expiry is never expiring.
func (s Snapshot) IsExpiringSoon(now time.Time, threshold time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(threshold).Before(s.ExpiresAt)
}

// EffectiveRoles are the roles from the roles call, or the profile's own
// roles until that call has landed.
func (s Snapshot) EffectiveRoles() []string {
	if s.RolesLoaded {
		return s.Roles
	}
	if s.UserInfo != nil {
		return s.UserInfo.Roles
	}
	return nil
}

// RolesKnown reports whether any source of roles has loaded.
func (s Snapshot) RolesKnown() bool {
	return s.RolesLoaded || (s.UserInfo != nil && len(s.UserInfo.Roles) > 0)
}

// HasRole reports whether the user holds role.
func (s Snapshot) HasRole(role string) bool {
	return slices.Contains(s.EffectiveRoles(), role)
}

// HasAnyRole reports whether the user holds at least one of roles.
func (s Snapshot) HasAnyRole(roles []string) bool {
	have := s.EffectiveRoles()
	for _, r := range roles {
		if slices.Contains(have, r) {
			return true
		}
	}
	return false
}

// HasPermission reports whether perm is among the loaded permissions.
func (s Snapshot) HasPermission(perm string) bool {
	if s.PermissionsLoaded {
		return slices.Contains(s.Permissions, perm)
	}
	if s.UserInfo != nil {
		return slices.Contains(s.UserInfo.Permissions, perm)
	}
	return false
}
