package idp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Login runs the password grant and fetches the profile of the new session.
func (c *Client) Login(ctx context.Context, cred Credential) (*LoginResult, error) {
	tokens, err := c.requestToken(ctx, url.Values{
		"grant_type": {"password"},
		"client_id":  {c.ClientID},
		"username":   {cred.Username},
		"password":   {cred.Password},
	})
	if err != nil {
		return nil, err
	}

	profile, err := c.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch profile after login: %w", err)
	}

	return &LoginResult{Tokens: tokens, Profile: profile}, nil
}

// Refresh exchanges a refresh credential for a new access token. The device
// fingerprint is sent when non-empty so the provider can bind the credential
// to the device.
func (c *Client) Refresh(ctx context.Context, refreshToken, fingerprint string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.ClientID},
		"refresh_token": {refreshToken},
	}
	if fingerprint != "" {
		data.Set("device_fingerprint", fingerprint)
	}
	return c.requestToken(ctx, data)
}

// ExchangeCode redeems an authorization code, proving possession of the PKCE
// verifier.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {c.ClientID},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}
	return c.requestToken(ctx, data)
}

// Revoke revokes a refresh credential (RFC 7009). The provider answers 200
// for unknown tokens too.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	resp, err := c.postForm(ctx, "/v1/oauth2/revoke", url.Values{
		"token":           {refreshToken},
		"token_type_hint": {"refresh_token"},
		"client_id":       {c.ClientID},
	})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK, http.StatusNoContent)
}

func (c *Client) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, "/v1/oauth2/token", data)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("token response without access_token")
	}
	return &tokens, nil
}
