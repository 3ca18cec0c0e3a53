package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Resolution is the outcome of one validator pass.
type Resolution struct {
	Session *SessionObject
	// RedirectTo is the fast-path redirect target, or "" to stay. The route
	// guard enforces the same rule independently; this only avoids a stuck
	// page while the guard catches up.
	RedirectTo string
}

// SessionValidator resolves the current user once per page load: capture a
// URL handoff token, fall back to the stored token, validate against the
// backend, and degrade to the cached snapshot when validation cannot
// complete. The asymmetric trust-on-failure policy favors availability over
// strict correctness and is intentional; see DESIGN.md before changing it.
type SessionValidator struct {
	store          TokenStore
	users          UserFetcher
	handoff        HandoffSource
	states         *SessionStateMachine
	logger         Logger
	activity       ActivitySink
	loginRoute     string
	optimisticWait time.Duration
	group          singleflight.Group
}

// ValidatorOption customizes validator construction.
type ValidatorOption func(*SessionValidator)

// WithValidatorLogger overrides the default logger.
func WithValidatorLogger(logger Logger) ValidatorOption {
	return func(v *SessionValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithValidatorOptimisticWait bounds how long a pass with a cached
// snapshot waits for the validation result before rendering the snapshot.
func WithValidatorOptimisticWait(d time.Duration) ValidatorOption {
	return func(v *SessionValidator) {
		if d > 0 {
			v.optimisticWait = d
		}
	}
}

// WithValidatorActivitySink sets the sink notified on fallback and
// rejection events.
func WithValidatorActivitySink(sink ActivitySink) ValidatorOption {
	return func(v *SessionValidator) {
		v.activity = normalizeActivitySink(sink)
		v.states = NewSessionStateMachine(
			WithStateMachineActivitySink(v.activity),
			WithStateMachineLogger(v.logger),
		)
	}
}

// NewSessionValidator wires the validator to its store, backend fetcher and
// handoff consumer.
func NewSessionValidator(store TokenStore, users UserFetcher, handoff HandoffSource, cfg Config, opts ...ValidatorOption) *SessionValidator {
	v := &SessionValidator{
		store:          store,
		users:          users,
		handoff:        handoff,
		states:         NewSessionStateMachine(),
		logger:         defLogger{},
		activity:       noopActivitySink{},
		loginRoute:     cfg.GetLoginRoute(),
		optimisticWait: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Resolve runs one validation pass. urlToken is the handoff token carried
// in the query string ("" when absent); presentedToken is the token the
// browser presented via cookie ("" when absent). URL-token capture strictly
// precedes the validation request.
func (v *SessionValidator) Resolve(ctx context.Context, urlToken, presentedToken string) *Resolution {
	session := NewSessionObject()
	resolution := &Resolution{Session: session}

	token := v.resolveToken(ctx, urlToken, presentedToken)
	if token == "" {
		// clear the loading flag before redirecting so the UI never shows
		// a stuck spinner
		session.Loading = false
		v.transition(ctx, session, SessionUnauthenticated)
		resolution.RedirectTo = v.loginRoute
		return resolution
	}
	session.Token = token

	cached, err := v.store.ReadCachedUser(ctx, token)
	if err != nil {
		v.logger.Error("cached user read failure", "error", err)
	}
	if cached != nil {
		// optimistic rendering: something to show, stop loading before the
		// validation result lands
		session.User = cached
		session.Loading = false
		v.transition(ctx, session, SessionOptimistic)
	}

	user, err, done := v.validate(ctx, token, cached != nil)
	if !done {
		// slow backend with a snapshot on hand: render the snapshot now,
		// the in-flight validation settles the store when it lands
		return resolution
	}
	if err == nil {
		session.User = user
		session.Loading = false
		v.transition(ctx, session, SessionAuthenticated)
		return resolution
	}

	v.logValidationFailure(token, err)

	if cached != nil {
		// transient failures must not log the user out: keep the cached
		// snapshot and the stored token
		v.transition(ctx, session, SessionAuthenticated)
		v.record(ctx, ActivityEvent{
			EventType:  ActivityEventValidationFallback,
			UserID:     cached.Email,
			Metadata:   map[string]any{"error": err.Error()},
			OccurredAt: time.Now(),
		})
		return resolution
	}

	if err := v.store.Clear(ctx, token); err != nil {
		v.logger.Error("session clear failure", "error", err)
	}
	session.User = nil
	session.Loading = false
	v.transition(ctx, session, SessionUnauthenticated)
	v.record(ctx, ActivityEvent{
		EventType:  ActivityEventSessionRejected,
		Metadata:   map[string]any{"token": maskToken(token), "error": err.Error()},
		OccurredAt: time.Now(),
	})
	resolution.RedirectTo = v.loginRoute

	return resolution
}

// resolveToken applies step one of the pass: a URL handoff token overrides
// any previously stored token and is persisted before validation starts.
func (v *SessionValidator) resolveToken(ctx context.Context, urlToken, presentedToken string) string {
	if urlToken != "" {
		if err := v.handoff.Consume(ctx, urlToken); err != nil {
			// validation may still succeed with the in-flight value; the
			// consumer already logged the write failure
			v.logger.Warn("handoff capture failed, continuing with URL token")
		}
		return urlToken
	}

	stored, err := v.store.Read(ctx, presentedToken)
	if err != nil {
		v.logger.Error("token read failure", "error", err)
		return ""
	}
	return stored
}

// validate issues the "who am I" request, collapsing concurrent passes over
// the same token into a single backend call. With bounded true the call
// waits at most optimisticWait and reports done=false on expiry; the flight
// keeps running and persists its snapshot out-of-band.
func (v *SessionValidator) validate(ctx context.Context, token string, bounded bool) (*User, error, bool) {
	flight := func() (any, error) {
		// the flight outlives a bounded caller, so it must not die with
		// the request context
		user, err := v.users.Me(context.WithoutCancel(ctx), token)
		if err != nil {
			return nil, err
		}
		if serr := v.store.SaveCachedUser(context.WithoutCancel(ctx), token, user); serr != nil {
			v.logger.Error("snapshot write failure", "error", serr)
		}
		return user, nil
	}

	if !bounded {
		result, err, _ := v.group.Do(token, flight)
		return flightUser(result, err)
	}

	select {
	case res := <-v.group.DoChan(token, flight):
		return flightUser(res.Val, res.Err)
	case <-time.After(v.optimisticWait):
		return nil, nil, false
	case <-ctx.Done():
		return nil, nil, false
	}
}

func flightUser(result any, err error) (*User, error, bool) {
	if err != nil {
		return nil, err, true
	}
	user, ok := result.(*User)
	if !ok || user == nil {
		return nil, ErrUnableToParseSnapshot, true
	}
	return user, nil, true
}

func (v *SessionValidator) logValidationFailure(token string, err error) {
	switch {
	case IsNetworkFailure(err):
		v.logger.Warn("validation unreachable", "token", maskToken(token), "error", err)
	case IsValidationRejected(err):
		if expiry, ok := TokenExpiry(token); ok {
			v.logger.Info("validation rejected", "token", maskToken(token), "expired_at", expiry)
			return
		}
		v.logger.Info("validation rejected", "token", maskToken(token), "error", err)
	default:
		v.logger.Error("validation failure", "token", maskToken(token), "error", err)
	}
}

func (v *SessionValidator) transition(ctx context.Context, session *SessionObject, target SessionState) {
	if err := v.states.Transition(ctx, session, target); err != nil {
		v.logger.Error("session transition rejected", "target", target, "error", err)
	}
}

func (v *SessionValidator) record(ctx context.Context, event ActivityEvent) {
	if err := v.activity.Record(ctx, event); err != nil {
		v.logger.Warn("activity sink failure", "event", event.EventType, "error", err)
	}
}
