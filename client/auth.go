package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/prism-review/dashboard"
)

// TokenResponse is the backend's credential grant.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SignupPayload creates a new account.
type SignupPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// oauthURLResponse carries the provider authorization URL.
type oauthURLResponse struct {
	URL string `json:"url"`
}

// Me implements dashboard.UserFetcher: it resolves the user behind the
// token via the backend's identity endpoint.
func (c *Client) Me(ctx context.Context, token string) (*dashboard.User, error) {
	user := &dashboard.User{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/me",
		token:  token,
	}, user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LoginAccessToken exchanges credentials for a bearer token. The backend
// expects a form-encoded username/password pair.
func (c *Client) LoginAccessToken(ctx context.Context, email, password string) (*TokenResponse, error) {
	body, contentType := formBody(url.Values{
		"username": {email},
		"password": {password},
	})

	out := &TokenResponse{}
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login/access-token",
		body:        body,
		contentType: contentType,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Signup registers a new account. The backend grants a token right away,
// so a successful signup is also a login.
func (c *Client) Signup(ctx context.Context, payload SignupPayload) (*TokenResponse, error) {
	body, contentType, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}

	out := &TokenResponse{}
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/signup",
		body:        body,
		contentType: contentType,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GitHubLoginURL asks the backend for the provider authorization URL.
// Callers bound the context: a cold backend can take long enough that the
// user deserves a "try again" instead of a hung page.
func (c *Client) GitHubLoginURL(ctx context.Context) (string, error) {
	out := &oauthURLResponse{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/login/github",
	}, out)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// DeleteAccount removes the account behind the token.
func (c *Client) DeleteAccount(ctx context.Context, token string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/auth/me",
		token:  token,
	}, nil)
}
