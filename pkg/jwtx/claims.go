// Package jwtx reads the claims of identity provider access tokens.
//
// The gateway is a client of the provider and never holds the signing keys,
// so tokens are decoded without signature verification. The provider stays
// the authority on validity; the claims are only used to schedule refreshes
// and to seed the profile before the userinfo call lands.
package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed reports a token that is not a decodable JWT.
var ErrMalformed = errors.New("jwtx: malformed token")

// Claims are the access token claims issued by the provider.
type Claims struct {
	jwt.RegisteredClaims

	SID         string   `json:"sid,omitempty"`
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Parse decodes raw without verifying its signature.
func Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of raw. The zero time means the expiry is
// unknown, either because raw is opaque or because it carries no exp.
func ExpiresAt(raw string) time.Time {
	claims, err := Parse(raw)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
