package dashboard

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_SESSION_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested session state change is
// not allowed by the resolution graph.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// sessionTransitions is the legal resolution graph for one validator pass:
// unresolved may short-circuit to optimistic when a cached snapshot exists,
// optimistic settles into authenticated (fresh response or cached fallback)
// or unauthenticated, and authenticated can only be torn down by logout.
var sessionTransitions = map[SessionState][]SessionState{
	SessionUnresolved:      {SessionOptimistic, SessionAuthenticated, SessionUnauthenticated},
	SessionOptimistic:      {SessionAuthenticated, SessionUnauthenticated},
	SessionAuthenticated:   {SessionUnauthenticated},
	SessionUnauthenticated: {},
}

// SessionStateMachine centralizes session state transitions and publishes
// them to an ActivitySink.
type SessionStateMachine struct {
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

// SessionStateMachineOption customizes state machine construction.
type SessionStateMachineOption func(*SessionStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) SessionStateMachineOption {
	return func(sm *SessionStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the sink used to publish state events.
func WithStateMachineActivitySink(sink ActivitySink) SessionStateMachineOption {
	return func(sm *SessionStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) SessionStateMachineOption {
	return func(sm *SessionStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewSessionStateMachine builds a state machine with the default transition
// graph.
func NewSessionStateMachine(opts ...SessionStateMachineOption) *SessionStateMachine {
	sm := &SessionStateMachine{
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// CanTransition reports whether moving from one state to another is legal.
// Same-state transitions are treated as no-ops and always allowed.
func (sm *SessionStateMachine) CanTransition(from, to SessionState) bool {
	if from == to {
		return true
	}
	for _, allowed := range sessionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the session to the target state, rejecting illegal moves
// and stamping the resolution time.
func (sm *SessionStateMachine) Transition(ctx context.Context, session *SessionObject, target SessionState) error {
	if session == nil {
		return goerrors.New("nil session", goerrors.CategoryBadInput)
	}

	from := session.State
	if from == target {
		return nil
	}

	if !sm.CanTransition(from, target) {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": string(from),
			"to":   string(target),
		})
	}

	session.State = target
	now := sm.now()
	session.ResolvedAt = &now

	event := ActivityEvent{
		EventType:  ActivityEventStateChanged,
		UserID:     sessionUserID(session),
		FromState:  from,
		ToState:    target,
		OccurredAt: now,
	}
	if err := sm.activitySink.Record(ctx, event); err != nil {
		// sinks are best effort, a failing sink must not break resolution
		sm.logger.Warn("activity sink failure", "event", event.EventType, "error", err)
	}

	return nil
}

func sessionUserID(session *SessionObject) string {
	if session == nil || session.User == nil {
		return ""
	}
	return session.User.Email
}
