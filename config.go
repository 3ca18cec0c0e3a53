package dashboard

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// AppConfig is the concrete configuration loaded by the binary. Library
// code consumes it through the Config interface.
type AppConfig struct {
	Backend struct {
		URL string `koanf:"url" json:"url"`
	} `koanf:"backend" json:"backend"`
	Cookie struct {
		Name   string `koanf:"name" json:"name"`
		MaxAge int    `koanf:"max_age" json:"max_age"`
	} `koanf:"cookie" json:"cookie"`
	Routes struct {
		ProtectedPrefix string `koanf:"protected_prefix" json:"protected_prefix"`
		ProtectedHome   string `koanf:"protected_home" json:"protected_home"`
		Login           string `koanf:"login" json:"login"`
	} `koanf:"routes" json:"routes"`
	Timeouts struct {
		OAuthSeconds        int `koanf:"oauth_seconds" json:"oauth_seconds"`
		PollIntervalSeconds int `koanf:"poll_interval_seconds" json:"poll_interval_seconds"`
	} `koanf:"timeouts" json:"timeouts"`
	Persistence struct {
		DSN string `koanf:"dsn" json:"dsn"`
	} `koanf:"persistence" json:"persistence"`
	Server struct {
		Address    string `koanf:"address" json:"address"`
		CSRFSecret string `koanf:"csrf_secret" json:"csrf_secret"`
	} `koanf:"server" json:"server"`
	Views struct {
		Dir string `koanf:"dir" json:"dir"`
	} `koanf:"views" json:"views"`
}

var _ Config = (*AppConfig)(nil)

// DefaultAppConfig returns a runnable configuration; every field can be
// overridden by config file or environment.
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{}
	cfg.Backend.URL = "http://127.0.0.1:8000"
	cfg.Cookie.Name = "token"
	cfg.Cookie.MaxAge = 604800
	cfg.Routes.ProtectedPrefix = "/dashboard"
	cfg.Routes.ProtectedHome = "/dashboard"
	cfg.Routes.Login = "/login"
	cfg.Timeouts.OAuthSeconds = 15
	cfg.Timeouts.PollIntervalSeconds = 2
	cfg.Persistence.DSN = "file:dashboard.db?cache=shared"
	cfg.Server.Address = ":3000"
	cfg.Views.Dir = "./views"
	return cfg
}

func (a *AppConfig) Validate() error {
	return validation.Errors{
		"backend.url": validation.Validate(a.Backend.URL, validation.Required, is.URL),
		"cookie.name": validation.Validate(a.Cookie.Name, validation.Required),
		"cookie.max_age": validation.Validate(a.Cookie.MaxAge,
			validation.Required, validation.Min(1)),
		"routes.protected_prefix": validation.Validate(a.Routes.ProtectedPrefix, validation.Required),
		"routes.login":            validation.Validate(a.Routes.Login, validation.Required),
		"persistence.dsn":         validation.Validate(a.Persistence.DSN, validation.Required),
	}.Filter()
}

func (a *AppConfig) GetBackendURL() string     { return a.Backend.URL }
func (a *AppConfig) GetCookieName() string     { return a.Cookie.Name }
func (a *AppConfig) GetCookieMaxAge() int      { return a.Cookie.MaxAge }
func (a *AppConfig) GetProtectedPrefix() string { return a.Routes.ProtectedPrefix }
func (a *AppConfig) GetProtectedHome() string  { return a.Routes.ProtectedHome }
func (a *AppConfig) GetLoginRoute() string     { return a.Routes.Login }
func (a *AppConfig) GetOAuthTimeout() int      { return a.Timeouts.OAuthSeconds }
func (a *AppConfig) GetPollInterval() int      { return a.Timeouts.PollIntervalSeconds }
func (a *AppConfig) GetDSN() string            { return a.Persistence.DSN }
func (a *AppConfig) GetServerAddress() string  { return a.Server.Address }
func (a *AppConfig) GetCSRFSecret() string     { return a.Server.CSRFSecret }
func (a *AppConfig) GetViewsDir() string       { return a.Views.Dir }
