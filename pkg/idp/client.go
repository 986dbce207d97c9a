package idp

import (
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every provider call unless the caller's context is
// tighter.
const DefaultTimeout = 10 * time.Second

// Client talks to one identity provider as one registered public client.
type Client struct {
	BaseURL    string
	ClientID   string
	HTTPClient *http.Client
}

// New returns a client for the provider at baseURL. A zero timeout uses
// DefaultTimeout.
func New(baseURL, clientID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		ClientID:   clientID,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}
