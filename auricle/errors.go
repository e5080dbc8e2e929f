package auricle

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure.
type Kind string

const (
	// KindNotFound means no song was resolvable by any path.
	KindNotFound Kind = "not_found"
	// KindIncompleteInput means the manual path was invoked without all four
	// required fields.
	KindIncompleteInput Kind = "incomplete_input"
	// KindUpstreamUnavailable means the external catalog failed or timed out
	// with no local fallback.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindArtifactUnavailable means the scoring artifact could not be loaded.
	// Fatal at startup; never returned per request once the engine is up.
	KindArtifactUnavailable Kind = "artifact_unavailable"
)

// Error is a structured domain error carrying a failure kind. The first three
// kinds are recovered at the request boundary and returned as user-facing
// errors; they never crash the process.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a domain error of the given kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds a domain error wrapping an underlying cause.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the failure kind from err, or empty when err carries none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
