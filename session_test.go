package dashboard_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	dashboard "github.com/prism-review/dashboard"
)

func TestNewSessionObject(t *testing.T) {
	session := dashboard.NewSessionObject()

	require.Equal(t, dashboard.SessionUnresolved, session.State)
	require.True(t, session.Loading)
	require.Nil(t, session.User)
	require.Empty(t, session.Token)
}

func TestSessionAuthenticated(t *testing.T) {
	tests := []struct {
		state dashboard.SessionState
		want  bool
	}{
		{dashboard.SessionUnresolved, false},
		{dashboard.SessionOptimistic, true},
		{dashboard.SessionAuthenticated, true},
		{dashboard.SessionUnauthenticated, false},
	}

	for _, tt := range tests {
		session := &dashboard.SessionObject{State: tt.state}
		require.Equal(t, tt.want, session.Authenticated(), "state=%s", tt.state)
	}

	var nilSession *dashboard.SessionObject
	require.False(t, nilSession.Authenticated())
	require.Nil(t, nilSession.GetUser())
}

func TestSessionString(t *testing.T) {
	session := dashboard.SessionObject{
		State:   dashboard.SessionAuthenticated,
		User:    &dashboard.User{Email: "ada@example.com"},
		Loading: false,
	}
	require.Equal(t, "state=authenticated user=ada@example.com loading=false", session.String())

	empty := dashboard.SessionObject{State: dashboard.SessionUnresolved, Loading: true}
	require.Equal(t, "state=unresolved user=<nil> loading=true", empty.String())
}
