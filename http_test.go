package dashboard_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	dashboard "github.com/prism-review/dashboard"
)

func newProvider(t *testing.T, store dashboard.TokenStore, users dashboard.UserFetcher) *dashboard.SessionProvider {
	t.Helper()

	cfg := dashboard.DefaultAppConfig()
	handoff := dashboard.NewHandoffConsumer(store)
	validator := dashboard.NewSessionValidator(store, users, handoff, cfg)

	provider, err := dashboard.NewSessionProvider(validator, store, cfg)
	require.NoError(t, err)
	return provider
}

func TestMiddlewareAuthenticatedRequestPassesThrough(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Save(context.Background(), "tok-mw"))

	user := &dashboard.User{ID: 1, Email: "ada@example.com"}
	users := &MockUserFetcher{}
	users.On("Me", mock.Anything, "tok-mw").Return(user, nil)

	provider := newProvider(t, store, users)

	ctx := router.NewMockContext()
	ctx.CookiesM["token"] = "tok-mw"
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything).Return()
	ctx.On("Locals", dashboard.SessionLocalsKey, mock.Anything).Return(nil)
	ctx.On("Locals", dashboard.TemplateUserKey, user).Return(nil)

	nextCalled := false
	handler := provider.Middleware()(func(c router.Context) error {
		nextCalled = true
		return nil
	})

	require.NoError(t, handler(ctx))
	require.True(t, nextCalled)
	ctx.AssertExpectations(t)
}

func TestMiddlewareStaleCookieRedirectsAndDeletesCookie(t *testing.T) {
	store := newMemoryStore()

	users := &MockUserFetcher{}

	provider := newProvider(t, store, users)

	ctx := router.NewMockContext()
	ctx.CookiesM["token"] = "tok-stale"
	ctx.On("Context").Return(context.Background())
	ctx.On("Method").Return("GET")

	var deleted bool
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "token" && c.Value == "" && c.Expires.Before(time.Now())
	})).Run(func(mock.Arguments) {
		deleted = true
	}).Return()

	var redirect string
	ctx.On("Redirect", mock.Anything, []int{http.StatusFound}).Run(func(args mock.Arguments) {
		redirect = args.String(0)
	}).Return(nil)

	handler := provider.Middleware()(func(c router.Context) error {
		t.Fatal("next should not run for an unauthenticated request")
		return nil
	})

	require.NoError(t, handler(ctx))
	require.Equal(t, "/login", redirect)
	require.True(t, deleted)
	users.AssertNotCalled(t, "Me", mock.Anything, mock.Anything)
}

func TestMiddlewareHandoffTokenStripsURL(t *testing.T) {
	store := newMemoryStore()

	user := &dashboard.User{ID: 3, Email: "lin@example.com"}
	users := &MockUserFetcher{}
	users.On("Me", mock.Anything, "tok-url").Return(user, nil)

	provider := newProvider(t, store, users)

	ctx := router.NewMockContext()
	ctx.QueriesM["token"] = "tok-url"
	ctx.On("Context").Return(context.Background())
	ctx.On("OriginalURL").Return("/dashboard?token=tok-url")
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "token" && c.Value == "tok-url"
	})).Return()

	var redirect string
	ctx.On("Redirect", mock.Anything, []int{http.StatusFound}).Run(func(args mock.Arguments) {
		redirect = args.String(0)
	}).Return(nil)

	handler := provider.Middleware()(func(c router.Context) error {
		t.Fatal("the handoff navigation must redirect, not render")
		return nil
	})

	require.NoError(t, handler(ctx))
	require.Equal(t, "/dashboard", redirect)

	// the token survived the redirect in the store
	stored, err := store.Read(context.Background(), "tok-url")
	require.NoError(t, err)
	require.Equal(t, "tok-url", stored)
}

func TestEstablishSession(t *testing.T) {
	store := newMemoryStore()
	provider := newProvider(t, store, &MockUserFetcher{})

	ctx := router.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "token" && c.Value == "tok-fresh" && c.HTTPOnly && c.SameSite == "Lax"
	})).Return()

	require.NoError(t, provider.EstablishSession(ctx, "tok-fresh"))

	stored, err := store.Read(context.Background(), "tok-fresh")
	require.NoError(t, err)
	require.Equal(t, "tok-fresh", stored)
	ctx.AssertExpectations(t)
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Save(context.Background(), "tok-out"))

	sink := &recorderSink{}
	provider := newProvider(t, store, &MockUserFetcher{}).WithActivitySink(sink)

	run := func(cookie string) {
		ctx := router.NewMockContext()
		if cookie != "" {
			ctx.CookiesM["token"] = cookie
		}
		ctx.On("Context").Return(context.Background())
		ctx.On("Method").Return("GET")
		ctx.On("Cookie", mock.Anything).Return().Maybe()
		ctx.On("Locals", dashboard.SessionLocalsKey, nil).Return(nil)
		ctx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

		require.NoError(t, provider.Logout(ctx))
	}

	run("tok-out")
	require.False(t, store.has("tok-out"))

	// second logout finds nothing and still lands on login
	run("")

	require.Len(t, sink.byType(dashboard.ActivityEventLogout), 2)
}
