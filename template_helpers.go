package dashboard

import (
	"github.com/goliatone/go-router"
)

// TemplateUserKey is the locals/template key for the current user.
var TemplateUserKey = "current_user"

// TemplateHelpers returns helper functions and data for the django views.
//
// In templates:
//
//	{% if current_user %}
//	{{ current_user.Email }}
//	{% if is_authenticated(current_user) %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"display_name":     displayName,
	}
}

// MergeTemplateData merges the resolved session into view data so every
// protected page renders with current_user, session_state and loading
// without each controller repeating the plumbing.
func MergeTemplateData(ctx router.Context, data router.ViewContext) router.ViewContext {
	if data == nil {
		data = router.ViewContext{}
	}

	session, ok := SessionFromRouter(ctx)
	if !ok {
		return data
	}

	if _, exists := data[TemplateUserKey]; !exists && session.User != nil {
		data[TemplateUserKey] = session.User
	}
	if _, exists := data["session_state"]; !exists {
		data["session_state"] = string(session.State)
	}
	if _, exists := data["loading"]; !exists {
		data["loading"] = session.Loading
	}

	return data
}

// GetTemplateUser extracts the current user from router context for
// template usage.
func GetTemplateUser(ctx router.Context) (*User, bool) {
	raw := ctx.Locals(TemplateUserKey)
	if raw == nil {
		return nil, false
	}
	user, ok := raw.(*User)
	return user, ok
}

// isAuthenticated checks if the provided user object is not nil
func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return true
	default:
		return false
	}
}

func displayName(user any) string {
	switch u := user.(type) {
	case *User:
		return u.DisplayName()
	case User:
		return u.DisplayName()
	default:
		return ""
	}
}
