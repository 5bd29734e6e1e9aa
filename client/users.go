package client

import (
	"context"
	"net/http"

	"github.com/DoctorGattino/blog/types"
)

// Login exchanges credentials for a user carrying a session token
func (c *Client) Login(ctx context.Context, creds types.Credentials) (types.User, error) {
	payload := map[string]interface{}{
		"user": creds,
	}

	var env types.UserEnvelope
	if err := c.doJSONRequest(ctx, http.MethodPost, "/users/login", payload, &env); err != nil {
		return types.User{}, err
	}
	return env.User, nil
}

// Register creates an account and returns it signed in
func (c *Client) Register(ctx context.Context, reg types.Registration) (types.User, error) {
	payload := map[string]interface{}{
		"user": reg,
	}

	var env types.UserEnvelope
	if err := c.doJSONRequest(ctx, http.MethodPost, "/users", payload, &env); err != nil {
		return types.User{}, err
	}
	return env.User, nil
}

// CurrentUser returns the account behind the session token
func (c *Client) CurrentUser(ctx context.Context) (types.User, error) {
	var env types.UserEnvelope
	if err := c.doJSONRequest(ctx, http.MethodGet, "/user", nil, &env); err != nil {
		return types.User{}, err
	}
	return env.User, nil
}

// UpdateUser changes the profile of the session user
func (c *Client) UpdateUser(ctx context.Context, update types.ProfileUpdate) (types.User, error) {
	payload := map[string]interface{}{
		"user": update,
	}

	var env types.UserEnvelope
	if err := c.doJSONRequest(ctx, http.MethodPut, "/user", payload, &env); err != nil {
		return types.User{}, err
	}
	return env.User, nil
}
