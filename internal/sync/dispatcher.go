package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/offlinekit/journalsync/internal/model"
	"github.com/offlinekit/journalsync/internal/state"
)

// Config bounds a dispatch cycle.
type Config struct {
	// BatchSize caps how many events one cycle dequeues, keeping cycles
	// short relative to the trigger interval.
	BatchSize int

	// MaxAttempts is the delivery ceiling for transient failures. An event
	// whose attempt count reaches this bound stops retrying.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt. It doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration

	// Retention is how long completed events are kept before the
	// end-of-cycle prune removes them.
	Retention time.Duration
}

// DefaultConfig returns the dispatch bounds used when the config file leaves
// them unset.
func DefaultConfig() Config {
	return Config{
		BatchSize:   25,
		MaxAttempts: 5,
		BaseDelay:   10 * time.Second,
		MaxDelay:    15 * time.Minute,
		Retention:   24 * time.Hour,
	}
}

// Stats summarises one dispatch cycle.
type Stats struct {
	// Delivered counts events acknowledged by the backend.
	Delivered int
	// Retried counts events returned to pending with backoff.
	Retried int
	// Failed counts events that became terminally failed this cycle.
	Failed int
	// Returned counts events put back untouched by an auth abort.
	Returned int
	// Pruned counts completed events garbage-collected at cycle end.
	Pruned int
	// AuthAborted is true when the cycle stopped early because the
	// credential was rejected or could not be acquired.
	AuthAborted bool
}

// Dispatcher delivers queued outbox events to the backend. It is stateless
// between cycles — all persistent state lives in the [Queue].
type Dispatcher struct {
	queue     Queue
	transport Transport
	creds     Credentials
	entries   EntryMarker
	cfg       Config
	log       *slog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewDispatcher creates a Dispatcher wired to the given collaborators.
func NewDispatcher(queue Queue, transport Transport, creds Credentials, entries EntryMarker, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	return &Dispatcher{
		queue:     queue,
		transport: transport,
		creds:     creds,
		entries:   entries,
		cfg:       cfg,
		log:       logger,
		now:       time.Now,
	}
}

// RunCycle performs one dispatch cycle. Sync-time failures never propagate to
// whoever saved the entries; they surface only through event status, entry
// sync flags, and the returned stats. The error return covers cycle-level
// problems (credential acquisition, queue access), not per-event outcomes.
func (d *Dispatcher) RunCycle(ctx context.Context) (Stats, error) {
	var stats Stats

	// Acquire the credential before touching the queue. An auth problem is
	// orthogonal to the events — none of them should burn retry budget on it.
	cred, err := d.creds.Credential(ctx)
	if err != nil {
		stats.AuthAborted = true
		return stats, fmt.Errorf("acquiring credential: %w", err)
	}

	batch, err := d.queue.DequeueBatch(ctx, d.cfg.BatchSize, d.now())
	if err != nil {
		return stats, fmt.Errorf("dequeueing batch: %w", err)
	}

	for i, evt := range batch {
		err := d.deliver(ctx, cred, evt)
		if err == nil {
			stats.Delivered++
			continue
		}

		switch model.ClassifyRemote(err) {
		case model.FailureAuth:
			// The credential went bad mid-batch. Put this event and the
			// rest back untouched, signal re-authentication, end the cycle.
			d.log.Warn("credential rejected mid-cycle, aborting batch", "error", err)
			for _, rest := range batch[i:] {
				if rerr := d.queue.ReturnEvent(ctx, rest.EventID); rerr != nil {
					d.log.Error("returning event after auth abort", "event_id", rest.EventID, "error", rerr)
				}
				stats.Returned++
			}
			d.creds.Invalidate()
			stats.AuthAborted = true
			return stats, nil

		case model.FailurePermanent:
			// The backend will reject this payload every time. Stop now
			// instead of exhausting the retry budget.
			d.log.Error("event rejected by backend, marking failed",
				"event_id", evt.EventID, "entry_id", evt.EntryID, "action", evt.Action, "error", err)
			if ferr := d.queue.FailEvent(ctx, evt.EventID); ferr != nil {
				d.log.Error("marking event failed", "event_id", evt.EventID, "error", ferr)
			}
			stats.Failed++

		default: // transient
			attempts := evt.AttemptCount + 1
			if attempts >= d.cfg.MaxAttempts {
				d.log.Error("event exhausted retries, marking failed",
					"event_id", evt.EventID, "entry_id", evt.EntryID, "attempts", attempts, "error", err)
				if ferr := d.queue.FailEvent(ctx, evt.EventID); ferr != nil {
					d.log.Error("marking event failed", "event_id", evt.EventID, "error", ferr)
				}
				stats.Failed++
				continue
			}
			delay := backoffDelay(attempts, d.cfg.BaseDelay, d.cfg.MaxDelay)
			d.log.Warn("event delivery failed, will retry",
				"event_id", evt.EventID, "entry_id", evt.EntryID,
				"attempts", attempts, "retry_in", delay, "error", err)
			if rerr := d.queue.RequeueEvent(ctx, evt.EventID, attempts, d.now().Add(delay)); rerr != nil {
				d.log.Error("requeueing event", "event_id", evt.EventID, "error", rerr)
			}
			stats.Retried++
		}
	}

	// Opportunistic garbage collection of old completed events.
	pruned, err := d.queue.PruneCompleted(ctx, d.now().Add(-d.cfg.Retention))
	if err != nil {
		d.log.Error("pruning completed events", "error", err)
	}
	stats.Pruned = pruned

	return stats, nil
}

// deliver sends one event over the transport and records the outcome locally.
// A nil return means the event is completed; any error is a classified
// transport failure to be handled by the caller.
func (d *Dispatcher) deliver(ctx context.Context, cred string, evt *state.Event) error {
	payload, err := model.DecodePayload(evt.Payload)
	if err != nil {
		// A payload this process wrote but cannot read back will never
		// transmit. Terminal.
		return &model.RemoteError{Kind: model.FailurePermanent, Err: err}
	}

	var backendID string
	switch evt.Action {
	case model.ActionCreate:
		backendID, err = d.transport.Create(ctx, cred, evt.EntryID, evt.Payload)
	case model.ActionUpdate:
		backendID = payload.BackendID
		err = d.transport.Update(ctx, cred, backendID, evt.Payload)
	case model.ActionDelete:
		err = d.transport.Delete(ctx, cred, payload.BackendID)
	default:
		return &model.RemoteError{
			Kind: model.FailurePermanent,
			Err:  fmt.Errorf("unknown action %q", evt.Action),
		}
	}
	if err != nil {
		return err
	}

	// Record the acknowledgement before completing the event. If the mark
	// fails, the event stays eligible for redispatch and the (idempotent)
	// remote call is repeated rather than the entry staying dirty forever.
	if evt.Action != model.ActionDelete {
		if err := d.entries.MarkSynced(ctx, evt.EntryID, backendID); err != nil {
			return &model.RemoteError{
				Kind: model.FailureTransient,
				Err:  fmt.Errorf("recording sync ack for entry %s: %w", evt.EntryID, err),
			}
		}
	}

	if err := d.queue.CompleteEvent(ctx, evt.EventID); err != nil {
		d.log.Error("completing event", "event_id", evt.EventID, "error", err)
	}
	d.log.Debug("event delivered",
		"event_id", evt.EventID, "entry_id", evt.EntryID,
		"action", evt.Action, "backend_id", backendID)
	return nil
}
