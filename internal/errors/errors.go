// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. The execution layer uses the kinds to separate the three
// failure tiers: session/transport failures that end an invocation, protocol faults that
// become return codes, and request validation failures.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// so callers can branch with errors.Is against a bare kind sentinel.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// ConnectionFailed indicates the database session could not be established.
	ConnectionFailed Kind = "connection_failed"
	// AuthorizationFailed indicates the become-user profile swap was rejected.
	AuthorizationFailed Kind = "authorization_failed"
	// DependencyUnavailable indicates a required driver or transport is missing.
	DependencyUnavailable Kind = "dependency_unavailable"
	// TransportFailed indicates the toolkit request could not be delivered.
	TransportFailed Kind = "transport_failed"
	// ProtocolFault indicates the toolkit response could not be parsed.
	ProtocolFault Kind = "protocol_fault"
	// InvalidRequest indicates a request was rejected before dispatch.
	InvalidRequest Kind = "invalid_request"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

// Is matches another *E with the same kind, so a bare sentinel such as
// &E{Kind: ConnectionFailed} can be used as an errors.Is target.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return stderrors.Is(err, &E{Kind: kind})
}
