package dashboard_test

import (
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/require"

	dashboard "github.com/prism-review/dashboard"
)

func TestMergeTemplateDataInjectsSession(t *testing.T) {
	user := &dashboard.User{Email: "ada@example.com", FullName: "Ada Lovelace"}

	ctx := router.NewMockContext()
	ctx.LocalsMock[dashboard.SessionLocalsKey] = &dashboard.SessionObject{
		State:   dashboard.SessionAuthenticated,
		User:    user,
		Loading: false,
	}

	data := dashboard.MergeTemplateData(ctx, router.ViewContext{"title": "Dashboard"})

	require.Equal(t, "Dashboard", data["title"])
	require.Equal(t, user, data[dashboard.TemplateUserKey])
	require.Equal(t, "authenticated", data["session_state"])
	require.Equal(t, false, data["loading"])
}

func TestMergeTemplateDataWithoutSession(t *testing.T) {
	ctx := router.NewMockContext()

	data := dashboard.MergeTemplateData(ctx, nil)
	require.NotNil(t, data)
	require.NotContains(t, data, dashboard.TemplateUserKey)
}

func TestMergeTemplateDataDoesNotOverride(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.LocalsMock[dashboard.SessionLocalsKey] = &dashboard.SessionObject{
		State: dashboard.SessionAuthenticated,
		User:  &dashboard.User{Email: "session@example.com"},
	}

	explicit := &dashboard.User{Email: "explicit@example.com"}
	data := dashboard.MergeTemplateData(ctx, router.ViewContext{
		dashboard.TemplateUserKey: explicit,
	})

	require.Equal(t, explicit, data[dashboard.TemplateUserKey])
}

func TestTemplateHelperFunctions(t *testing.T) {
	helpers := dashboard.TemplateHelpers()

	isAuthenticated, ok := helpers["is_authenticated"].(func(any) bool)
	require.True(t, ok)
	require.True(t, isAuthenticated(&dashboard.User{Email: "a@b.co"}))
	require.False(t, isAuthenticated(nil))
	require.False(t, isAuthenticated("nope"))

	displayName, ok := helpers["display_name"].(func(any) string)
	require.True(t, ok)
	require.Equal(t, "Ada Lovelace", displayName(&dashboard.User{Email: "a@b.co", FullName: "Ada Lovelace"}))
	require.Equal(t, "a@b.co", displayName(&dashboard.User{Email: "a@b.co"}))
	require.Equal(t, "", displayName(nil))
}
