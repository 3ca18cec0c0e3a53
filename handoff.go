package dashboard

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// HandoffConsumer owns "consume handoff token" as a single idempotent
// operation. Any component observing a URL-delivered token (the validator,
// the dashboard route) goes through this one capability instead of
// persisting on its own.
type HandoffConsumer struct {
	store    TokenStore
	logger   Logger
	activity ActivitySink
}

var _ HandoffSource = (*HandoffConsumer)(nil)

// HandoffOption customizes consumer construction.
type HandoffOption func(*HandoffConsumer)

// WithHandoffLogger overrides the default logger.
func WithHandoffLogger(logger Logger) HandoffOption {
	return func(h *HandoffConsumer) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHandoffActivitySink sets the sink notified on consumption.
func WithHandoffActivitySink(sink ActivitySink) HandoffOption {
	return func(h *HandoffConsumer) {
		h.activity = normalizeActivitySink(sink)
	}
}

// NewHandoffConsumer builds a consumer writing through the given store.
func NewHandoffConsumer(store TokenStore, opts ...HandoffOption) *HandoffConsumer {
	consumer := &HandoffConsumer{
		store:    store,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		opt(consumer)
	}
	return consumer
}

// Consume persists a URL-delivered token. Safe to call more than once per
// navigation: the underlying write is an upsert keyed by the token, so
// racing consumers converge on the same stored value.
func (h *HandoffConsumer) Consume(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := h.store.Save(ctx, token); err != nil {
		h.logger.Error("handoff token persist failure", "token", maskToken(token), "error", err)
		return err
	}

	h.logger.Debug("handoff token consumed", "token", maskToken(token))
	if err := h.activity.Record(ctx, ActivityEvent{
		EventType:  ActivityEventHandoffConsumed,
		Metadata:   map[string]any{"token": maskToken(token)},
		OccurredAt: time.Now(),
	}); err != nil {
		h.logger.Warn("activity sink failure", "event", ActivityEventHandoffConsumed, "error", err)
	}

	return nil
}

// StripTokenParam removes the one-shot token parameter from a URL so the
// credential is never left in browser history. The rest of the query is
// preserved.
func StripTokenParam(rawURL, param string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// fall back to dropping the whole query rather than leaking a token
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}

	query := u.Query()
	query.Del(param)
	u.RawQuery = query.Encode()

	return u.String()
}
