// Package guard implements the cookie-based route guard: a stateless,
// synchronous gate evaluated per navigation, independent of client-side
// session state.
//
// The guard trusts cookie PRESENCE, not validity (validity is the session
// validator's job). A forged cookie only grants access to a UI shell that
// will still fail to fetch data without a valid token, so this middleware
// is not a security boundary by itself.
package guard

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
)

type Config struct {
	// CookieName is the session cookie inspected for presence (default: "token")
	CookieName string

	// ProtectedPrefix is the path prefix requiring a cookie (default: "/dashboard")
	ProtectedPrefix string

	// ProtectedHome is where authenticated users land when they hit an
	// auth-entry page (default: ProtectedPrefix)
	ProtectedHome string

	// AuthEntryPaths are the login/registration pages authenticated users
	// are bounced away from (default: ["/login"])
	AuthEntryPaths []string

	// HandoffParam is the query parameter that carries a credential handoff.
	// A request presenting it passes without a cookie so the session
	// middleware can consume the token; there is no cookie yet on a
	// first-time OAuth callback (default: "token")
	HandoffParam string

	// Filter skips the guard for matching requests (optional)
	Filter func(router.Context) bool
}

// Decision is the guard verdict for one navigation.
type Decision struct {
	// RedirectTo is empty when the navigation is allowed.
	RedirectTo string
}

// New returns the route guard middleware.
func New(config ...Config) router.MiddlewareFunc {
	cfg := getDefaultConfig(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			if cfg.HandoffParam != "" && ctx.Query(cfg.HandoffParam) != "" {
				return next(ctx)
			}

			decision := Evaluate(cfg, requestPath(ctx), ctx.Cookies(cfg.CookieName) != "")
			if decision.RedirectTo != "" {
				return ctx.Redirect(decision.RedirectTo, http.StatusFound)
			}

			return next(ctx)
		}
	}
}

// Evaluate applies the guard predicate. It is deliberately coarse:
// cookie present on an auth-entry page redirects to the protected home,
// cookie absent under the protected prefix redirects to auth entry,
// everything else passes.
func Evaluate(cfg Config, path string, hasCookie bool) Decision {
	if hasCookie && isAuthEntry(cfg, path) {
		return Decision{RedirectTo: cfg.ProtectedHome}
	}

	if !hasCookie && strings.HasPrefix(path, cfg.ProtectedPrefix) {
		return Decision{RedirectTo: cfg.AuthEntryPaths[0]}
	}

	return Decision{}
}

func isAuthEntry(cfg Config, path string) bool {
	for _, entry := range cfg.AuthEntryPaths {
		if path == entry {
			return true
		}
	}
	return false
}

func requestPath(ctx router.Context) string {
	path := ctx.OriginalURL()
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func getDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.CookieName == "" {
		cfg.CookieName = "token"
	}

	if cfg.ProtectedPrefix == "" {
		cfg.ProtectedPrefix = "/dashboard"
	}

	if cfg.ProtectedHome == "" {
		cfg.ProtectedHome = cfg.ProtectedPrefix
	}

	if len(cfg.AuthEntryPaths) == 0 {
		cfg.AuthEntryPaths = []string{"/login"}
	}

	if cfg.HandoffParam == "" {
		cfg.HandoffParam = "token"
	}

	return cfg
}
