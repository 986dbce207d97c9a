// Package idp is the HTTP client for the identity provider.
//
// It is the only code in the gateway that talks to the provider. Calls are
// stateless: every user-scoped call takes the access token explicitly, and
// session bookkeeping (expiry, refresh coordination, persistence) lives with
// the caller.
//
// # Errors
//
// Non-2xx responses decode into *Error. Failures to reach the provider wrap
// ErrTransport. Callers branch on the classification helpers:
//
//	switch {
//	case idp.IsInvalidCredential(err): // 401, invalid_grant, invalid_token: clear the session
//	case idp.IsTransient(err):         // transport, timeout, 5xx, 429: retry later
//	case idp.IsForbidden(err):         // 403: authorization failure, session intact
//	}
//
// # Authorization code flow
//
//	pkce, _ := idp.NewPKCE()
//	url := client.BuildAuthorizeURL(redirectURI, state, nil, pkce)
//	// ... browser returns to redirectURI ...
//	code, state, err := idp.ParseCallback(callbackURL)
//	tokens, err := client.ExchangeCode(ctx, code, redirectURI, pkce.Verifier)
package idp
