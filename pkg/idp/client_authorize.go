package idp

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/ssogate/pkg/cryptox"
)

// PKCE is a verifier and its S256 challenge (RFC 7636). The verifier stays
// with the client until the code exchange.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// NewPKCE generates a verifier with 256 bits of entropy.
func NewPKCE() (*PKCE, error) {
	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate pkce verifier: %w", err)
	}
	return &PKCE{
		Verifier:  verifier,
		Challenge: cryptox.S256(verifier),
		Method:    "S256",
	}, nil
}

// BuildAuthorizeURL returns the provider URL the browser is sent to for an
// interactive login.
func (c *Client) BuildAuthorizeURL(redirectURI, state string, scopes []string, pkce *PKCE) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.ClientID)
	params.Set("redirect_uri", redirectURI)
	if state != "" {
		params.Set("state", state)
	}
	if len(scopes) > 0 {
		params.Set("scope", strings.Join(scopes, " "))
	}
	if pkce != nil {
		params.Set("code_challenge", pkce.Challenge)
		params.Set("code_challenge_method", pkce.Method)
	}
	return c.url("/v1/oauth2/authorize") + "?" + params.Encode()
}

// ParseCallback extracts code and state from the redirect back from the
// provider. A provider reported error is returned as *Error.
func ParseCallback(callbackURL string) (code, state string, err error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", "", fmt.Errorf("parse callback url: %w", err)
	}
	return ParseCallbackQuery(u.Query())
}

// ParseCallbackQuery is ParseCallback over an already parsed query.
func ParseCallbackQuery(q url.Values) (code, state string, err error) {
	if e := q.Get("error"); e != "" {
		return "", "", &Error{StatusCode: http.StatusBadRequest, Code: e, Description: q.Get("error_description")}
	}

	code = q.Get("code")
	if code == "" {
		return "", "", &Error{StatusCode: http.StatusBadRequest, Code: ErrorCodeInvalidRequest, Description: "callback missing authorization code"}
	}
	return code, q.Get("state"), nil
}
