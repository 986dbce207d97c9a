package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// OAuth2 error codes (RFC 6749, RFC 6750) the gateway reacts to.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidClient  = "invalid_client"
	ErrorCodeInvalidGrant   = "invalid_grant"
	ErrorCodeInvalidToken   = "invalid_token"
	ErrorCodeAccessDenied   = "access_denied"
	ErrorCodeServerError    = "server_error"
)

// ErrTransport wraps failures to obtain a response from the provider.
var ErrTransport = errors.New("idp: transport failure")

// Error is a non-2xx response from the provider.
type Error struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("idp: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// IsTransient reports whether retrying the call later may succeed: transport
// failures, timeouts, 5xx, 408 and 429.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode >= 500 ||
			e.StatusCode == http.StatusTooManyRequests ||
			e.StatusCode == http.StatusRequestTimeout
	}

	if errors.Is(err, ErrTransport) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne)
}

// IsInvalidCredential reports a definitive rejection of the presented token
// or refresh credential. Retrying cannot help; the session is over.
func IsInvalidCredential(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized ||
		e.Code == ErrorCodeInvalidGrant ||
		e.Code == ErrorCodeInvalidToken
}

// IsForbidden reports a 403. The session is valid but lacks authority.
func IsForbidden(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusForbidden
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	code := ErrorCodeServerError
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		code = ErrorCodeInvalidToken
	case http.StatusForbidden:
		code = ErrorCodeAccessDenied
	case http.StatusBadRequest:
		code = ErrorCodeInvalidRequest
	}

	return &Error{
		StatusCode:  resp.StatusCode,
		Code:        code,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
