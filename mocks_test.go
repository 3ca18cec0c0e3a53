package dashboard_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	dashboard "github.com/prism-review/dashboard"
)

// MockUserFetcher implements dashboard.UserFetcher
type MockUserFetcher struct {
	mock.Mock
}

func (m *MockUserFetcher) Me(ctx context.Context, token string) (*dashboard.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*dashboard.User)
	return user, args.Error(1)
}

// MockHandoffSource implements dashboard.HandoffSource
type MockHandoffSource struct {
	mock.Mock
}

func (m *MockHandoffSource) Consume(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// memoryStore is an in-memory dashboard.TokenStore for wiring the validator
// and provider without a database.
type memoryStore struct {
	mu     sync.Mutex
	tokens map[string]bool
	users  map[string]*dashboard.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tokens: map[string]bool{},
		users:  map[string]*dashboard.User{},
	}
}

func (m *memoryStore) Save(_ context.Context, token string) error {
	if token == "" {
		return dashboard.ErrNoCredential
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = true
	return nil
}

func (m *memoryStore) Read(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens[token] {
		return token, nil
	}
	return "", nil
}

func (m *memoryStore) Clear(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	delete(m.users, token)
	return nil
}

func (m *memoryStore) SaveCachedUser(_ context.Context, token string, user *dashboard.User) error {
	if token == "" {
		return dashboard.ErrNoCredential
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[token] = user
	return nil
}

func (m *memoryStore) ReadCachedUser(_ context.Context, token string) (*dashboard.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[token], nil
}

func (m *memoryStore) ClearCachedUser(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, token)
	return nil
}

func (m *memoryStore) has(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[token]
}

// recorderSink collects activity events for assertions.
type recorderSink struct {
	mu     sync.Mutex
	events []dashboard.ActivityEvent
}

func (r *recorderSink) Record(_ context.Context, event dashboard.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorderSink) byType(eventType dashboard.ActivityEventType) []dashboard.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dashboard.ActivityEvent
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
