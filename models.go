package dashboard

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the last validated user snapshot returned by the backend. It is
// cached for optimistic rendering and always superseded by a fresh
// validation response.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// DisplayName returns the best label we have for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// SessionRecord is the persisted browser session: one row per token,
// carrying the token and the cached user snapshot. The record ID is derived
// deterministically from the token so concurrent writers converge on the
// same row (last writer wins).
type SessionRecord struct {
	bun.BaseModel   `bun:"table:dashboard_sessions,alias:dse"`
	ID              uuid.UUID       `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token           string          `bun:"token,notnull,unique" json:"token,omitempty"`
	UserCache       json.RawMessage `bun:"user_cache,nullzero" json:"user_cache,omitempty"`
	LastValidatedAt *time.Time      `bun:"last_validated_at,nullzero" json:"last_validated_at,omitempty"`
	CreatedAt       *time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// CachedUser decodes the stored snapshot, or returns nil when absent.
func (r *SessionRecord) CachedUser() (*User, error) {
	if r == nil || len(r.UserCache) == 0 {
		return nil, nil
	}
	user := &User{}
	if err := json.Unmarshal(r.UserCache, user); err != nil {
		return nil, ErrUnableToParseSnapshot
	}
	return user, nil
}

// SetCachedUser encodes the snapshot into the record. A nil user clears it.
func (r *SessionRecord) SetCachedUser(user *User) error {
	if user == nil {
		r.UserCache = nil
		return nil
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	r.UserCache = raw
	return nil
}
