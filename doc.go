// Package dashboard implements the client-session core of the PRISM
// code-review dashboard: acquisition, caching, validation and teardown of
// the backend-issued bearer token, plus the HTTP plumbing that exposes the
// resolved session to the page tree.
//
// Session lifecycle:
//   - TokenStore persists the token and the cached user snapshot (bun over
//     sqlite, one row per token). The token cookie is mirrored best-effort
//     by the HTTP layer; store and cookie are two eventually consistent
//     observers of one logical session, last writer wins.
//   - SessionValidator runs one resolution pass per page load: URL handoff
//     capture, stored-token lookup, backend "who am I" validation, and an
//     optimistic fallback to the cached snapshot when validation cannot
//     complete. A transient backend failure never logs the user out as long
//     as a snapshot exists.
//   - SessionProvider owns the in-memory session for a request, mirrors the
//     cookie, and is the only component allowed to decide the user is
//     logged out.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the validator,
//     the state machine and the provider to describe login, logout,
//     handoff and fallback events. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking
//     resolution.
package dashboard
