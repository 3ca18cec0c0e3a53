package dashboard_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	dashboard "github.com/prism-review/dashboard"
)

func TestDefaultAppConfigValidates(t *testing.T) {
	cfg := dashboard.DefaultAppConfig()
	require.NoError(t, cfg.Validate())

	require.Equal(t, "token", cfg.GetCookieName())
	require.Equal(t, "/dashboard", cfg.GetProtectedPrefix())
	require.Equal(t, "/dashboard", cfg.GetProtectedHome())
	require.Equal(t, "/login", cfg.GetLoginRoute())
	require.Equal(t, 604800, cfg.GetCookieMaxAge())
	require.Equal(t, 15, cfg.GetOAuthTimeout())
	require.Equal(t, 2, cfg.GetPollInterval())
	require.NotEmpty(t, cfg.GetBackendURL())
	require.NotEmpty(t, cfg.GetDSN())
	require.NotEmpty(t, cfg.GetServerAddress())
	require.NotEmpty(t, cfg.GetViewsDir())
}

func TestAppConfigValidateRejectsMissingFields(t *testing.T) {
	cfg := dashboard.DefaultAppConfig()
	cfg.Backend.URL = ""
	require.Error(t, cfg.Validate())

	cfg = dashboard.DefaultAppConfig()
	cfg.Cookie.Name = ""
	require.Error(t, cfg.Validate())

	cfg = dashboard.DefaultAppConfig()
	cfg.Persistence.DSN = ""
	require.Error(t, cfg.Validate())

	cfg = dashboard.DefaultAppConfig()
	cfg.Backend.URL = "not a url"
	require.Error(t, cfg.Validate())
}
