// Package sync implements the outbox dispatcher for journalsync. It drains
// queued mutation events, delivers them to the backend transport, and drives
// the retry/backoff state machine:
//
//	pending → in_flight → {completed | pending (retry) | failed}
//
// The package contains two main components:
//
//   - [Dispatcher] runs a single dispatch cycle: credential acquisition,
//     bounded batch drain, per-event delivery, and outcome bookkeeping.
//   - [Engine] runs the cycle on a fixed interval plus an explicit
//     "sync now" trigger, and records traces and metrics per cycle.
package sync

import (
	"context"
	"time"

	"github.com/offlinekit/journalsync/internal/state"
)

// Queue provides access to the durable outbox.
// Implemented by [state.Store].
type Queue interface {
	DequeueBatch(ctx context.Context, limit int, now time.Time) ([]*state.Event, error)
	CompleteEvent(ctx context.Context, eventID string) error
	RequeueEvent(ctx context.Context, eventID string, attemptCount int, nextAttemptAt time.Time) error
	ReturnEvent(ctx context.Context, eventID string) error
	FailEvent(ctx context.Context, eventID string) error
	PruneCompleted(ctx context.Context, cutoff time.Time) (int, error)
}

// EntryMarker records backend acknowledgements against local entries.
// Implemented by [journal.Repository].
type EntryMarker interface {
	MarkSynced(ctx context.Context, id, backendID string) error
}

// Transport performs the remote mutation calls. Implementations classify
// failures by returning a [model.RemoteError]; the dispatcher branches on the
// failure kind, never on transport internals.
// Implemented by [remote.Client].
type Transport interface {
	// Create pushes a new entry and returns the backend-assigned id. The
	// idempotency key (the local entry id) makes the call safe to repeat
	// after a lost acknowledgement.
	Create(ctx context.Context, credential, idempotencyKey string, payload []byte) (string, error)
	Update(ctx context.Context, credential, backendID string, payload []byte) error
	Delete(ctx context.Context, credential, backendID string) error
}

// Credentials supplies a valid access credential for a dispatch cycle.
// Implemented by [auth.TokenProvider].
type Credentials interface {
	// Credential returns a credential believed valid, or an error wrapping
	// [auth.ErrAuthRequired] when none can be produced.
	Credential(ctx context.Context) (string, error)
	// Invalidate discards any cached credential so the next acquisition
	// starts fresh. Fire-and-forget re-authentication signal.
	Invalidate()
}
