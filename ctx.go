package dashboard

import (
	"context"

	"github.com/goliatone/go-router"
)

var sessionCtxKey = &contextKey{"session"}
var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// SessionLocalsKey is the router locals key the provider stores the
// resolved session under.
const SessionLocalsKey = "session"

// WithSessionContext sets the resolved session in the given context
func WithSessionContext(r context.Context, session *SessionObject) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext finds the resolved session from the context.
func SessionFromContext(ctx context.Context) (*SessionObject, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*SessionObject)
	return raw, ok
}

// WithUserContext sets the User in the given context
func WithUserContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// UserFromContext finds the user from the context, falling back to the
// session when the user was not stored directly.
func UserFromContext(ctx context.Context) (*User, bool) {
	if raw, ok := ctx.Value(userCtxKey).(*User); ok {
		return raw, true
	}
	if session, ok := SessionFromContext(ctx); ok && session.User != nil {
		return session.User, true
	}
	return nil, false
}

// SessionFromRouter extracts the resolved session from the router context.
func SessionFromRouter(ctx router.Context) (*SessionObject, bool) {
	raw := ctx.Locals(SessionLocalsKey)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(*SessionObject)
	return session, ok
}

// UserFromRouter extracts the current user from the router context.
func UserFromRouter(ctx router.Context) (*User, bool) {
	session, ok := SessionFromRouter(ctx)
	if !ok || session.User == nil {
		return nil, false
	}
	return session.User, true
}
