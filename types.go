package dashboard

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SessionState is the in-memory session resolution state. It is owned by the
// session provider for the duration of one request; it is never persisted.
type SessionState string

const (
	// SessionUnresolved means no resolution pass has completed yet.
	SessionUnresolved SessionState = "unresolved"
	// SessionOptimistic means a cached snapshot is being shown while the
	// backend validation is still outstanding.
	SessionOptimistic SessionState = "optimistic"
	// SessionAuthenticated means the session resolved with a usable user.
	SessionAuthenticated SessionState = "authenticated"
	// SessionUnauthenticated means no usable credential exists.
	SessionUnauthenticated SessionState = "unauthenticated"
)

// Config holds dashboard options
type Config interface {
	GetBackendURL() string
	GetCookieName() string
	GetCookieMaxAge() int
	GetProtectedPrefix() string
	GetProtectedHome() string
	GetLoginRoute() string
	GetOAuthTimeout() int
	GetPollInterval() int
}

// TokenStore persists the bearer token and the cached user snapshot. The
// token cookie is NOT managed here; the HTTP layer mirrors it best-effort,
// so store and cookie are two eventually consistent views of one session.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	// Read returns the stored token matching the presented one, or "" when
	// the store has no record of it.
	Read(ctx context.Context, token string) (string, error)
	// Clear removes the token and its cached user snapshot. It does not
	// touch the cookie.
	Clear(ctx context.Context, token string) error

	SaveCachedUser(ctx context.Context, token string, user *User) error
	// ReadCachedUser returns the last validated snapshot, or nil when none
	// exists. A snapshot is a rendering optimization, never proof of a
	// currently valid session.
	ReadCachedUser(ctx context.Context, token string) (*User, error)
	ClearCachedUser(ctx context.Context, token string) error
}

// UserFetcher resolves the current user from the backend "who am I"
// endpoint using the token as a bearer credential.
type UserFetcher interface {
	Me(ctx context.Context, token string) (*User, error)
}

// UserFetcherFunc adapts a function to the UserFetcher interface.
type UserFetcherFunc func(ctx context.Context, token string) (*User, error)

// Me implements UserFetcher.
func (f UserFetcherFunc) Me(ctx context.Context, token string) (*User, error) {
	return f(ctx, token)
}

// HandoffSource captures a URL-delivered token exactly once per navigation.
type HandoffSource interface {
	Consume(ctx context.Context, token string) error
}

// DefaultLogger returns the fallback printf logger used when no structured
// logger is wired in.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Printf("[ERR] DASH "+newline(msg), args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Printf("[WRN] DASH "+newline(msg), args...)
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Printf("[INF] DASH "+newline(msg), args...)
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Printf("[DBG] DASH "+newline(msg), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
