// Package model defines shared types used across the journal repository,
// outbox queue, and sync engine.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action describes the remote mutation an outbox event represents.
type Action string

const (
	// ActionCreate pushes a new entry to the backend.
	ActionCreate Action = "create"
	// ActionUpdate overwrites an existing backend entry.
	ActionUpdate Action = "update"
	// ActionDelete removes an entry from the backend.
	ActionDelete Action = "delete"
)

// Valid reports whether a is one of the three known actions. Used when
// scanning events back out of the store.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Entry is a journal entry as held in the local store. Entries are value
// objects: callers construct a new value and hand it to the repository rather
// than mutating shared state in place.
type Entry struct {
	// ID is the locally generated identifier, assigned at creation and
	// immutable afterwards. It doubles as the idempotency key for the
	// remote create call.
	ID string

	// BackendID is the identifier assigned by the backend on the first
	// successful create. Empty until then.
	BackendID string

	// Title is the entry's optional heading.
	Title string

	// Content is the entry's body text.
	Content string

	// Mood is the mood label linked to this entry, if any.
	Mood string

	// Tags are free-form labels attached by the user.
	Tags []string

	// NeedsSync is true while the entry has local changes the backend has
	// not acknowledged.
	NeedsSync bool

	// IsSynced is true once the backend has acknowledged the latest local
	// state. IsSynced implies !NeedsSync.
	IsSynced bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payload is the wire snapshot of an entry serialized into an outbox event at
// enqueue time. It is the only shape the remote transport ever sends.
type Payload struct {
	ClientID  string   `json:"client_id"`
	BackendID string   `json:"backend_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	Content   string   `json:"content"`
	Mood      string   `json:"mood,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	UpdatedAt string   `json:"updated_at"`
}

// Snapshot builds the wire payload for the entry's current state.
func (e *Entry) Snapshot() ([]byte, error) {
	p := Payload{
		ClientID:  e.ID,
		BackendID: e.BackendID,
		Title:     e.Title,
		Content:   e.Content,
		Mood:      e.Mood,
		Tags:      e.Tags,
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding payload for entry %s: %w", e.ID, err)
	}
	return data, nil
}

// DecodePayload parses a stored event payload back into its wire form.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decoding event payload: %w", err)
	}
	return p, nil
}
