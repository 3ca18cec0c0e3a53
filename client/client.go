// Package client is the typed HTTP client for the review backend API.
// Every call is context-bound and returns rich errors carrying a text
// code that separates backend rejections from transport failures, so
// callers can decide whether a cached identity is still trustworthy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/prism-review/dashboard"
)

const apiPrefix = "/api/v1"

// Client talks to the review backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     dashboard.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger dashboard.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a backend client rooted at baseURL, e.g. "http://127.0.0.1:8000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     dashboard.DefaultLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// backendDetail is the backend's error envelope.
type backendDetail struct {
	Detail string `json:"detail"`
}

type request struct {
	method string
	path   string
	query  url.Values
	token  string
	body   io.Reader
	// contentType is only set when body is present
	contentType string
}

// do executes the request and decodes a 2xx JSON body into out when out
// is non-nil. Non-2xx responses become BACKEND_REJECTED errors with the
// backend's detail as the message; transport failures and deadline
// expirations get their own text codes.
func (c *Client) do(ctx context.Context, r request, out any) error {
	endpoint := c.baseURL + apiPrefix + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build backend request").
			WithCode(goerrors.CodeInternal)
	}

	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(r, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(r, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.rejectionError(r, resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode backend response").
			WithTextCode(dashboard.TextCodeBackendRejected).
			WithMetadata(map[string]any{
				"path":   r.path,
				"status": resp.StatusCode,
			})
	}

	return nil
}

func (c *Client) transportError(r request, err error) error {
	textCode := dashboard.TextCodeBackendUnreachable
	msg := "backend unreachable"
	if errors.Is(err, context.DeadlineExceeded) {
		textCode = dashboard.TextCodeBackendTimeout
		msg = "backend timed out"
	}

	c.logger.Warn("backend call failed", "method", r.method, "path", r.path, "error", err)

	return goerrors.Wrap(err, goerrors.CategoryOperation, msg).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"method": r.method,
			"path":   r.path,
		})
}

func (c *Client) rejectionError(r request, status int, body []byte) error {
	detail := backendDetail{}
	if err := json.Unmarshal(body, &detail); err != nil || detail.Detail == "" {
		detail.Detail = fmt.Sprintf("backend returned status %d", status)
	}

	category := goerrors.CategoryOperation
	code := goerrors.CodeInternal
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = goerrors.CategoryAuth
		code = goerrors.CodeUnauthorized
	case status == http.StatusNotFound:
		category = goerrors.CategoryNotFound
		code = goerrors.CodeNotFound
	case status >= 400 && status < 500:
		category = goerrors.CategoryBadInput
		code = goerrors.CodeBadRequest
	}

	return goerrors.New(detail.Detail, category).
		WithCode(code).
		WithTextCode(dashboard.TextCodeBackendRejected).
		WithMetadata(map[string]any{
			"method": r.method,
			"path":   r.path,
			"status": status,
		})
}

func jsonBody(v any) (io.Reader, string, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
	}
	return bytes.NewReader(buf), "application/json", nil
}

func formBody(values url.Values) (io.Reader, string) {
	return strings.NewReader(values.Encode()), "application/x-www-form-urlencoded"
}
