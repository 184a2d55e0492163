package client

import (
	"context"
	"net/http"

	"shirly.shop/app/pkg/view"
)

// Signup creates the account and stores the returned token on the client.
func (c *Client) Signup(ctx context.Context, in view.SignupRequest) (view.AuthResult, error) {
	var out view.AuthResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/signup", body: in}, &out); err != nil {
		return view.AuthResult{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Login stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (view.AuthResult, error) {
	var out view.AuthResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   view.LoginRequest{Email: email, Password: password},
	}, &out)
	if err != nil {
		return view.AuthResult{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Logout revokes the session server-side and forgets the token either way.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/logout"}, nil)
	c.SetToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (view.User, error) {
	var out view.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/auth/me"}, &out)
	return out, err
}

func (c *Client) UpdateMe(ctx context.Context, in view.ProfileRequest) (view.User, error) {
	var out view.User
	err := c.do(ctx, request{method: http.MethodPatch, path: "/api/auth/me", body: in}, &out)
	return out, err
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/password",
		body:   view.PasswordChangeRequest{CurrentPassword: current, NewPassword: next},
	}, nil)
}
