package dashboard

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// SessionProvider is the single owner of in-memory session state for a page
// tree: it runs the validator once per request, mirrors the token cookie,
// exposes the session through locals/context, and owns logout.
type SessionProvider struct {
	validator      *SessionValidator
	store          TokenStore
	cfg            Config
	cookieDuration time.Duration
	Logger         Logger
	activity       ActivitySink
	ErrorHandler   func(c router.Context, err error) error
}

// NewSessionProvider builds the provider for the protected page tree.
func NewSessionProvider(validator *SessionValidator, store TokenStore, cfg Config) (*SessionProvider, error) {
	cookieDuration := 7 * 24 * time.Hour
	if cfg.GetCookieMaxAge() > 0 {
		cookieDuration = time.Duration(cfg.GetCookieMaxAge()) * time.Second
	}

	p := &SessionProvider{
		validator:      validator,
		store:          store,
		cfg:            cfg,
		cookieDuration: cookieDuration,
		Logger:         defLogger{},
		activity:       noopActivitySink{},
	}

	p.ErrorHandler = p.defaultErrHandler

	return p, nil
}

// WithLogger overrides the default logger.
func (p *SessionProvider) WithLogger(logger Logger) *SessionProvider {
	if logger != nil {
		p.Logger = logger
	}
	return p
}

// WithActivitySink sets the sink notified on logout.
func (p *SessionProvider) WithActivitySink(sink ActivitySink) *SessionProvider {
	p.activity = normalizeActivitySink(sink)
	return p
}

func (p *SessionProvider) GetCookieDuration() time.Duration {
	return p.cookieDuration
}

// Middleware resolves the session for every request under the protected
// prefix. Re-runs whenever the query string changes since an OAuth handoff
// may introduce a new token.
func (p *SessionProvider) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			cookieName := p.cfg.GetCookieName()
			urlToken := ctx.Query(cookieName)
			presented := ctx.Cookies(cookieName)

			resolution := p.validator.Resolve(ctx.Context(), urlToken, presented)
			session := resolution.Session

			if session.Authenticated() {
				p.setCookieToken(ctx, session.Token)
			}

			if urlToken != "" && session.Authenticated() {
				// replace the current route so the handoff token never
				// survives in browser history
				return ctx.Redirect(StripTokenParam(ctx.OriginalURL(), cookieName), http.StatusFound)
			}

			if resolution.RedirectTo != "" {
				if presented != "" {
					// the cookie outlived the stored session; drop it so the
					// route guard and this middleware stop bouncing the
					// browser between login and dashboard
					p.cookieDel(ctx, cookieName)
				}
				return ctx.Redirect(resolution.RedirectTo, redirectStatus(ctx))
			}

			ctx.Locals(SessionLocalsKey, session)
			if session.User != nil {
				ctx.Locals(TemplateUserKey, session.User)
			}
			ctx.SetContext(WithSessionContext(ctx.Context(), session))

			return next(ctx)
		}
	}
}

// EstablishSession persists a freshly granted token and mirrors it into
// the cookie so the route guard sees the session on the next navigation.
func (p *SessionProvider) EstablishSession(ctx router.Context, token string) error {
	if err := p.store.Save(ctx.Context(), token); err != nil {
		return err
	}

	p.setCookieToken(ctx, token)
	return nil
}

// Logout clears the token and cached snapshot, resets the in-memory user,
// and navigates to the login page. Calling it twice leaves the same end
// state as calling it once.
func (p *SessionProvider) Logout(ctx router.Context) error {
	p.TerminateSession(ctx)

	if err := p.activity.Record(ctx.Context(), ActivityEvent{
		EventType:  ActivityEventLogout,
		OccurredAt: time.Now(),
	}); err != nil {
		p.Logger.Warn("activity sink failure", "event", ActivityEventLogout, "error", err)
	}

	return ctx.Redirect(p.cfg.GetLoginRoute(), redirectStatus(ctx))
}

// TerminateSession drops the stored session, the cookie, and the request
// locals without navigating. Safe to call when no session exists.
func (p *SessionProvider) TerminateSession(ctx router.Context) {
	cookieName := p.cfg.GetCookieName()
	token := ctx.Cookies(cookieName)

	if token != "" {
		if err := p.store.Clear(ctx.Context(), token); err != nil {
			p.Logger.Error("logout clear failure", "error", err)
		}
		p.cookieDel(ctx, cookieName)
	}

	ctx.Locals(SessionLocalsKey, nil)
}

// setCookieToken mirrors the token into the cookie the route guard reads.
// Skips the write when the cookie already carries the same value.
func (p *SessionProvider) setCookieToken(c router.Context, val string) {
	if c.Cookies(p.cfg.GetCookieName()) == val {
		return
	}

	c.Cookie(&router.Cookie{
		Name:     p.cfg.GetCookieName(),
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(p.cookieDuration),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (p *SessionProvider) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (p *SessionProvider) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	p.Logger.Info(
		"Session provider error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return c.Redirect(p.cfg.GetLoginRoute(), redirectStatus(c))
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

func redirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
