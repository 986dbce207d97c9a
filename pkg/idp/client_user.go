package idp

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// FetchProfile returns the userinfo of the token's subject.
func (c *Client) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	var p Profile
	if err := c.getJSON(ctx, "/v1/userinfo", token, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FetchPermissions returns the effective permission codes of the subject.
func (c *Client) FetchPermissions(ctx context.Context, token string) ([]string, error) {
	var out permissionsResponse
	if err := c.getJSON(ctx, "/v1/userinfo/permissions", token, &out); err != nil {
		return nil, err
	}
	return out.Permissions, nil
}

// FetchRoles returns the roles of the subject with the provider's view of
// the primary role and landing path.
func (c *Client) FetchRoles(ctx context.Context, token string) (*RoleInfo, error) {
	var out RoleInfo
	if err := c.getJSON(ctx, "/v1/userinfo/roles", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchMenus returns the menu tree visible to the subject.
func (c *Client) FetchMenus(ctx context.Context, token string) ([]Menu, error) {
	var out menusResponse
	if err := c.getJSON(ctx, "/v1/userinfo/menus", token, &out); err != nil {
		return nil, err
	}
	return out.Menus, nil
}

// Verify introspects token. An inactive token is a successful call with
// Valid=false; errors are reserved for failures to get an answer.
func (c *Client) Verify(ctx context.Context, token string) (*Verification, error) {
	resp, err := c.postForm(ctx, "/v1/oauth2/introspect", url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
		"client_id":       {c.ClientID},
	})
	if err != nil {
		return nil, err
	}

	var in IntrospectionResponse
	if err := decodeJSON(resp, &in, http.StatusOK); err != nil {
		return nil, err
	}
	if !in.Active {
		return &Verification{Valid: false}, nil
	}
	if in.Exp > 0 && time.Unix(in.Exp, 0).Before(time.Now()) {
		return &Verification{Valid: false}, nil
	}

	return &Verification{
		Valid: true,
		Profile: &Profile{
			UserID:   in.Subject,
			Username: in.Username,
			Roles:    in.Roles,
		},
	}, nil
}
