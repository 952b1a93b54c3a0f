package model

import (
	"errors"
	"fmt"
)

// FailureKind classifies a remote transport failure. The transport makes the
// classification (it sees the HTTP status); the dispatcher only branches on it.
type FailureKind int

const (
	// FailureTransient covers network errors, timeouts, and 5xx responses.
	// Worth retrying with backoff.
	FailureTransient FailureKind = iota
	// FailurePermanent covers structural rejections (4xx validation
	// errors). Retrying the same request can never succeed.
	FailurePermanent
	// FailureAuth covers 401-equivalent responses. The credential is the
	// problem, not the event.
	FailureAuth
)

// String returns the lower-case label for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	case FailureAuth:
		return "auth"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// RemoteError is a classified failure returned by the remote transport.
type RemoteError struct {
	Kind       FailureKind
	StatusCode int // 0 when the failure happened before a response arrived
	Err        error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failure (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s failure: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RemoteError) Unwrap() error { return e.Err }

// ClassifyRemote extracts the failure kind from err. Unclassified errors are
// treated as transient so an unexpected failure mode never burns an event's
// retry budget permanently.
func ClassifyRemote(err error) FailureKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return FailureTransient
}
