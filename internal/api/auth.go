package api

import (
	"context"
	"net/http"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"oneof=buyer seller"`
}

type authResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (User, string, error) {
	req := loginRequest{Email: email, Password: password}
	if err := c.check(req); err != nil {
		return User{}, "", err
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "/api/auth/login", req, &resp, false); err != nil {
		return User{}, "", err
	}
	return resp.User, resp.Token, nil
}

// Register creates an account and signs it in. role is "buyer" or "seller".
func (c *Client) Register(ctx context.Context, name, email, password, role string) (User, string, error) {
	req := registerRequest{Name: name, Email: email, Password: password, Role: role}
	if err := c.check(req); err != nil {
		return User{}, "", err
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "/api/auth/register", req, &resp, false); err != nil {
		return User{}, "", err
	}
	return resp.User, resp.Token, nil
}

// Me returns the user the token belongs to. A 401 means the token expired.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", "/api/auth/me", nil, &resp, true); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// Logout invalidates the token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", "/api/auth/logout", nil, nil, true)
}
