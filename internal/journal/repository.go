// Package journal implements the entry repository: the single point of
// mutation for journal entries. Every persisted change goes through
// [Repository.Save] or [Repository.Delete], which write the entry and its
// outbox event as one atomic unit. Nothing here ever touches the network —
// the sync engine picks queued events up later.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/offlinekit/journalsync/internal/model"
	"github.com/offlinekit/journalsync/internal/state"
)

const (
	// MaxTitleLen is the longest accepted entry title, in runes.
	MaxTitleLen = 200
	// MaxContentLen is the longest accepted entry body, in runes.
	MaxContentLen = 20000
	// MaxTags is the most tags a single entry may carry.
	MaxTags = 20
)

// ErrNotFound is returned when the referenced entry does not exist.
var ErrNotFound = errors.New("entry not found")

// ValidationError reports structurally invalid input to Save. It is returned
// before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EntryStore is the subset of [state.Store] the repository needs.
type EntryStore interface {
	GetEntry(ctx context.Context, id string) (*model.Entry, error)
	ListEntries(ctx context.Context) ([]*model.Entry, error)
	PendingSyncEntries(ctx context.Context) ([]*model.Entry, error)
	SaveEntry(ctx context.Context, e *model.Entry, evt *state.Event) error
	DeleteEntry(ctx context.Context, id string, evt *state.Event) (bool, error)
	MarkEntrySynced(ctx context.Context, id, backendID string) (bool, error)
}

// Repository owns journal entries. It is the sole writer of entry records;
// the sync engine reports delivery outcomes back through [Repository.MarkSynced].
type Repository struct {
	store EntryStore
	log   *slog.Logger
	now   func() time.Time
}

// NewRepository creates a Repository over the given store.
func NewRepository(store EntryStore, logger *slog.Logger) *Repository {
	return &Repository{store: store, log: logger, now: time.Now}
}

// Save validates and persists the entry and queues the matching sync intent.
// A new entry (empty ID) gets a generated id and a create event; an existing
// one gets an update event when it already has a backend id, otherwise its
// still-pending create absorbs the new state. The returned entry reflects the
// persisted state (id assigned, sync flags set, timestamps updated).
func (r *Repository) Save(ctx context.Context, e model.Entry) (*model.Entry, error) {
	if err := validate(&e); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
		e.CreatedAt = now
	} else {
		existing, err := r.store.GetEntry(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("loading entry %s: %w", e.ID, err)
		}
		if existing == nil {
			return nil, fmt.Errorf("saving entry %s: %w", e.ID, ErrNotFound)
		}
		// The backend id and creation time are owned by the record, not
		// the caller's copy.
		e.BackendID = existing.BackendID
		e.CreatedAt = existing.CreatedAt
	}
	e.UpdatedAt = now
	e.NeedsSync = true
	e.IsSynced = false

	action := model.ActionCreate
	if e.BackendID != "" {
		action = model.ActionUpdate
	}
	payload, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	evt := &state.Event{
		EventID:   uuid.NewString(),
		EntryID:   e.ID,
		Action:    action,
		Payload:   payload,
		CreatedAt: now,
	}

	if err := r.store.SaveEntry(ctx, &e, evt); err != nil {
		return nil, err
	}

	r.log.Debug("entry saved", "entry_id", e.ID, "action", action)
	return &e, nil
}

// Delete removes the entry locally and, if the backend knows about it, queues
// a delete event carrying the backend id. An entry that never synced is
// deleted locally only: its pending create (if any) is discarded and nothing
// is sent remotely.
func (r *Repository) Delete(ctx context.Context, id string) error {
	existing, err := r.store.GetEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("loading entry %s: %w", id, err)
	}
	if existing == nil {
		return fmt.Errorf("deleting entry %s: %w", id, ErrNotFound)
	}

	var evt *state.Event
	if existing.BackendID != "" {
		payload, err := existing.Snapshot()
		if err != nil {
			return err
		}
		evt = &state.Event{
			EventID:   uuid.NewString(),
			EntryID:   id,
			Action:    model.ActionDelete,
			Payload:   payload,
			CreatedAt: r.now().UTC(),
		}
	}

	deleted, err := r.store.DeleteEntry(ctx, id, evt)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("deleting entry %s: %w", id, ErrNotFound)
	}

	r.log.Debug("entry deleted", "entry_id", id, "remote_delete", evt != nil)
	return nil
}

// MarkSynced records a backend acknowledgement for the entry. Called only by
// the sync engine. If the entry was deleted locally while its event was in
// flight, the acknowledgement is logged and dropped — deletion wins.
func (r *Repository) MarkSynced(ctx context.Context, id, backendID string) error {
	updated, err := r.store.MarkEntrySynced(ctx, id, backendID)
	if err != nil {
		return err
	}
	if !updated {
		r.log.Info("sync ack for locally deleted entry, dropping", "entry_id", id)
	}
	return nil
}

// Get returns the entry with the given id.
func (r *Repository) Get(ctx context.Context, id string) (*model.Entry, error) {
	e, err := r.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// List returns all entries, newest first.
func (r *Repository) List(ctx context.Context) ([]*model.Entry, error) {
	return r.store.ListEntries(ctx)
}

// PendingSync returns all entries whose latest state has not been
// acknowledged by the backend. For status badges and diagnostics.
func (r *Repository) PendingSync(ctx context.Context) ([]*model.Entry, error) {
	return r.store.PendingSyncEntries(ctx)
}

// validate checks structural limits before anything is persisted.
func validate(e *model.Entry) error {
	if e.Content == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(e.Content); n > MaxContentLen {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("%d runes exceeds limit of %d", n, MaxContentLen)}
	}
	if n := utf8.RuneCountInString(e.Title); n > MaxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("%d runes exceeds limit of %d", n, MaxTitleLen)}
	}
	if len(e.Tags) > MaxTags {
		return &ValidationError{Field: "tags", Reason: fmt.Sprintf("%d tags exceeds limit of %d", len(e.Tags), MaxTags)}
	}
	for _, tag := range e.Tags {
		if tag == "" {
			return &ValidationError{Field: "tags", Reason: "must not contain empty tags"}
		}
	}
	return nil
}
