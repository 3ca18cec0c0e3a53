package dashboard

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
)

// SessionStore is the bun-backed TokenStore. One row per token holds both
// the credential and the cached user snapshot; the two have independent
// lifecycles within the row (a snapshot may be read while validation of the
// token is still pending).
type SessionStore struct {
	sessions Sessions
	logger   Logger
	now      func() time.Time
}

var _ TokenStore = (*SessionStore)(nil)

// SessionStoreOption customizes store construction.
type SessionStoreOption func(*SessionStore)

// WithStoreLogger overrides the default logger.
func WithStoreLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewSessionStore builds a TokenStore over the given repository.
func NewSessionStore(sessions Sessions, opts ...SessionStoreOption) *SessionStore {
	store := &SessionStore{
		sessions: sessions,
		logger:   defLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Save persists the token. The write is idempotent: concurrent consumers of
// the same handoff token converge on the same record.
func (s *SessionStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoCredential
	}

	record, err := s.sessions.GetByToken(ctx, token)
	if err != nil && !repository.IsRecordNotFound(err) {
		return err
	}
	if record == nil {
		record = &SessionRecord{Token: token}
	}

	_, err = s.sessions.UpsertByToken(ctx, record)
	return err
}

// Read returns the stored token, or "" when the store has no record of it.
func (s *SessionStore) Read(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}

	record, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return record.Token, nil
}

// Clear removes the token and its cached snapshot. The cookie is left to
// expire or be overwritten by the next login; that inconsistency window is
// accepted.
func (s *SessionStore) Clear(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteByToken(ctx, token)
}

// SaveCachedUser overwrites the snapshot after a successful validation.
func (s *SessionStore) SaveCachedUser(ctx context.Context, token string, user *User) error {
	if token == "" {
		return ErrNoCredential
	}

	record, err := s.sessions.GetByToken(ctx, token)
	if err != nil && !repository.IsRecordNotFound(err) {
		return err
	}
	if record == nil {
		record = &SessionRecord{Token: token}
	}

	if err := record.SetCachedUser(user); err != nil {
		return err
	}
	now := s.now()
	record.LastValidatedAt = &now

	_, err = s.sessions.UpsertByToken(ctx, record)
	return err
}

// ReadCachedUser returns the last validated snapshot or nil. A corrupt
// snapshot is logged and treated as absent rather than failing resolution.
func (s *SessionStore) ReadCachedUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}

	record, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	user, err := record.CachedUser()
	if err != nil {
		s.logger.Error("failed to parse user cache", "token", maskToken(token), "error", err)
		return nil, nil
	}
	return user, nil
}

// ClearCachedUser drops the snapshot but keeps the token.
func (s *SessionStore) ClearCachedUser(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	record, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return err
	}

	record.UserCache = nil
	_, err = s.sessions.UpsertByToken(ctx, record)
	return err
}
