package recordsapi

import (
	"context"
	"net/http"
)

// User is the account behind an API token.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResult carries the issued token and its user.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", nil, loginRequest{Username: username, Password: password}, &res)
	return res, err
}

// Verify checks the client's token and returns its user.
func (c *Client) Verify(ctx context.Context) (User, error) {
	var user User
	err := c.doEnvelope(ctx, "verify", http.MethodPost, "/auth/verify", nil, &user)
	return user, err
}

// Logout ends the token's server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doEnvelope(ctx, "logout", http.MethodPost, "/auth/logout", nil, nil)
}
