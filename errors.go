package dashboard

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNoCredential is the error when no token exists anywhere
var ErrNoCredential = errors.New("no credential available")

// ErrSessionNotFound is the error when the store has no record for a token
var ErrSessionNotFound = errors.New("session not found")

// ErrUnableToParseSnapshot is returned for corrupt cached user snapshots
var ErrUnableToParseSnapshot = errors.New("unable to parse cached user")

const (
	// TextCodeBackendRejected marks a non-2xx answer from the backend.
	TextCodeBackendRejected = "BACKEND_REJECTED"
	// TextCodeBackendUnreachable marks a transport-level failure.
	TextCodeBackendUnreachable = "BACKEND_UNREACHABLE"
	// TextCodeBackendTimeout marks a request cut off by its deadline.
	TextCodeBackendTimeout = "BACKEND_TIMEOUT"
)

// IsValidationRejected will check for backend non-2xx rejections
func IsValidationRejected(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeBackendRejected
	}
	return strings.Contains(err.Error(), "backend rejected")
}

// IsNetworkFailure will check for transport errors and timeouts. The
// validator treats these the same as rejections for fallback purposes.
func IsNetworkFailure(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeBackendUnreachable ||
			richErr.TextCode == TextCodeBackendTimeout
	}
	return strings.Contains(err.Error(), "backend unreachable")
}
