package dashboard

import (
	"fmt"
	"time"
)

// SessionObject holds the in-memory session for one page lifecycle. The
// session provider is its single owner; no other component may decide the
// user is logged out.
type SessionObject struct {
	Token      string
	State      SessionState
	User       *User
	Loading    bool
	ResolvedAt *time.Time
}

// NewSessionObject returns a session in its initial state, loading flag up.
func NewSessionObject() *SessionObject {
	return &SessionObject{
		State:   SessionUnresolved,
		Loading: true,
	}
}

// Authenticated reports whether the session currently has a usable user,
// including the optimistic window while validation is outstanding.
func (s *SessionObject) Authenticated() bool {
	if s == nil {
		return false
	}
	return s.State == SessionAuthenticated || s.State == SessionOptimistic
}

// GetUser returns the current user or nil.
func (s *SessionObject) GetUser() *User {
	if s == nil {
		return nil
	}
	return s.User
}

func (s SessionObject) String() string {
	user := "<nil>"
	if s.User != nil {
		user = s.User.Email
	}
	return fmt.Sprintf("state=%s user=%s loading=%t", s.State, user, s.Loading)
}
