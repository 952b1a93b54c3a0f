// Package state manages the SQLite database holding journal entries and the
// outbox of pending sync events.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods. Entry writes and their matching outbox
// appends happen inside a single transaction, so a persisted local change can
// never exist without its sync intent (and vice versa).
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/offlinekit/journalsync/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    id          TEXT    PRIMARY KEY,
    backend_id  TEXT    NOT NULL DEFAULT '',
    title       TEXT    NOT NULL DEFAULT '',
    content     TEXT    NOT NULL,
    mood        TEXT    NOT NULL DEFAULT '',
    tags        TEXT    NOT NULL DEFAULT '[]',
    needs_sync  INTEGER NOT NULL DEFAULT 1,
    is_synced   INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT    NOT NULL,
    updated_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_needs_sync ON entries (needs_sync) WHERE needs_sync = 1;

CREATE TABLE IF NOT EXISTS outbox_events (
    event_id        TEXT    PRIMARY KEY,
    entry_id        TEXT    NOT NULL,
    action          TEXT    NOT NULL,
    payload         BLOB    NOT NULL,
    status          TEXT    NOT NULL DEFAULT 'pending',
    attempt_count   INTEGER NOT NULL DEFAULT 0,
    next_attempt_at TEXT    NOT NULL DEFAULT '',
    created_at      TEXT    NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_one_pending
    ON outbox_events (entry_id) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_events (status);
`

// EventStatus is the lifecycle state of an outbox event.
type EventStatus string

const (
	// StatusPending marks an event waiting for dispatch (or redispatch).
	StatusPending EventStatus = "pending"
	// StatusInFlight marks an event claimed by a running dispatch cycle.
	StatusInFlight EventStatus = "in_flight"
	// StatusCompleted marks an event acknowledged by the backend.
	StatusCompleted EventStatus = "completed"
	// StatusFailed marks an event that stopped retrying, either because it
	// exhausted its attempts or because the backend rejected it outright.
	StatusFailed EventStatus = "failed"
)

// Event is a durable sync intent referencing an entry by id. The payload is a
// snapshot of the entry's wire form at enqueue time.
type Event struct {
	EventID       string
	EntryID       string
	Action        model.Action
	Payload       []byte
	Status        EventStatus
	AttemptCount  int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// QueueDepths is a per-status event count, used for diagnostics.
type QueueDepths struct {
	Pending   int
	InFlight  int
	Completed int
	Failed    int
}

// Store is the SQLite-backed journal and outbox repository.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the journal database:
// ~/.local/share/journalsync/journal.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "journalsync", "journal.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// configures WAL mode, and returns any events a crashed process left in
// flight to pending.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	// A crash between dequeue and resolution leaves events in flight with
	// nobody working on them. They are safe to redispatch: creates carry an
	// idempotency key and updates/deletes are idempotent by id.
	if err := recoverInFlight(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("recovering in-flight events: %w", err)
	}

	return &Store{db: db}, nil
}

// recoverInFlight returns crashed in-flight events to pending. An in-flight
// event whose entry gathered a fresh pending event before the crash is a
// stale snapshot and is dropped instead (same rule as releaseEvent) — it
// would otherwise trip the one-pending-per-entry index.
func recoverInFlight(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		DELETE FROM outbox_events
		WHERE status = ? AND entry_id IN (
		    SELECT entry_id FROM outbox_events WHERE status = ?)`,
		StatusInFlight, StatusPending)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		`UPDATE outbox_events SET status = ? WHERE status = ?`,
		StatusPending, StatusInFlight)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// --- entries -----------------------------------------------------------------

const entryColumns = `id, backend_id, title, content, mood, tags,
       needs_sync, is_synced, created_at, updated_at`

// GetEntry returns the entry with the given id, or (nil, nil) if no such
// entry exists.
func (s *Store) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	return scanEntry(row)
}

// ListEntries returns all entries, newest first.
func (s *Store) ListEntries(ctx context.Context) ([]*model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	return collectEntries(rows)
}

// PendingSyncEntries returns all entries whose latest state the backend has
// not acknowledged. Used for diagnostics and status badges, not by the
// dispatcher (which reads the outbox directly).
func (s *Store) PendingSyncEntries(ctx context.Context) ([]*model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE needs_sync = 1 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying pending entries: %w", err)
	}
	return collectEntries(rows)
}

// SaveEntry upserts the entry and, when evt is non-nil, enqueues it in the
// same transaction. If a pending event already exists for the entry, the new
// payload replaces the old one in place: the old event keeps its action,
// queue position, and retry schedule, because only the latest snapshot ever
// needs to reach the backend.
func (s *Store) SaveEntry(ctx context.Context, e *model.Entry, evt *Event) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags for entry %s: %w", e.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
		INSERT INTO entries
		    (id, backend_id, title, content, mood, tags,
		     needs_sync, is_synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    backend_id = excluded.backend_id,
		    title      = excluded.title,
		    content    = excluded.content,
		    mood       = excluded.mood,
		    tags       = excluded.tags,
		    needs_sync = excluded.needs_sync,
		    is_synced  = excluded.is_synced,
		    updated_at = excluded.updated_at`

	_, err = tx.ExecContext(ctx, upsert,
		e.ID, e.BackendID, e.Title, e.Content, e.Mood, string(tags),
		boolToInt(e.NeedsSync), boolToInt(e.IsSynced),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting entry %s: %w", e.ID, err)
	}

	if evt != nil {
		if err := enqueueTx(ctx, tx, evt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save for entry %s: %w", e.ID, err)
	}
	return nil
}

// DeleteEntry removes the entry and its pending and failed events. When evt is
// non-nil (the entry had a backend id) a delete event is enqueued in the same
// transaction. It returns false if no entry with the given id existed.
func (s *Store) DeleteEntry(ctx context.Context, id string, evt *Event) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting entry %s: %w", id, err)
	}
	if n == 0 {
		return false, nil
	}

	// Any unresolved intent for this entry is now moot: a pending create
	// would recreate an entry the user just removed, and a failed event
	// left behind would be revived by RetryFailed and push a record the
	// local store can never delete again. The enqueued delete (if any)
	// supersedes them all.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE entry_id = ? AND status IN (?, ?)`,
		id, StatusPending, StatusFailed)
	if err != nil {
		return false, fmt.Errorf("discarding unresolved events for entry %s: %w", id, err)
	}

	if evt != nil {
		if err := enqueueTx(ctx, tx, evt); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete for entry %s: %w", id, err)
	}
	return true, nil
}

// MarkEntrySynced records a backend acknowledgement: it sets the backend id,
// flips the sync flags, and returns false if the entry was deleted locally in
// the interim (deletion wins, nothing is written).
func (s *Store) MarkEntrySynced(ctx context.Context, id, backendID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entries
		SET backend_id = ?, is_synced = 1, needs_sync = 0
		WHERE id = ?`, backendID, id)
	if err != nil {
		return false, fmt.Errorf("marking entry %s synced: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking entry %s synced: %w", id, err)
	}
	return n > 0, nil
}

// --- outbox ------------------------------------------------------------------

const eventColumns = `event_id, entry_id, action, payload, status,
       attempt_count, next_attempt_at, created_at`

// enqueueTx implements the coalescing policy inside an open transaction. The
// partial unique index on (entry_id) WHERE status='pending' backs the
// one-pending-per-entry invariant at the schema level.
func enqueueTx(ctx context.Context, tx *sql.Tx, evt *Event) error {
	var existing string
	err := tx.QueryRowContext(ctx,
		`SELECT event_id FROM outbox_events WHERE entry_id = ? AND status = ?`,
		evt.EntryID, StatusPending).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outbox_events
			    (event_id, entry_id, action, payload, status,
			     attempt_count, next_attempt_at, created_at)
			VALUES (?, ?, ?, ?, ?, 0, '', ?)`,
			evt.EventID, evt.EntryID, string(evt.Action), evt.Payload,
			StatusPending, formatTime(evt.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("enqueueing %s event for entry %s: %w", evt.Action, evt.EntryID, err)
		}
	case err != nil:
		return fmt.Errorf("looking up pending event for entry %s: %w", evt.EntryID, err)
	default:
		// Coalesce: replace the snapshot, keep everything else. A pending
		// create stays a create — the backend still has no record to update.
		_, err = tx.ExecContext(ctx,
			`UPDATE outbox_events SET payload = ? WHERE event_id = ?`,
			evt.Payload, existing)
		if err != nil {
			return fmt.Errorf("coalescing event for entry %s: %w", evt.EntryID, err)
		}
	}
	return nil
}

// DequeueBatch claims up to limit pending events whose backoff delay has
// elapsed, marks them in flight, and returns them in creation order. Events
// whose entry already has an in-flight event are skipped so no entry ever has
// two remote calls outstanding.
func (s *Store) DequeueBatch(ctx context.Context, limit int, now time.Time) ([]*Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning dequeue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM outbox_events o
		WHERE status = ?
		  AND (next_attempt_at = '' OR next_attempt_at <= ?)
		  AND NOT EXISTS (
		      SELECT 1 FROM outbox_events f
		      WHERE f.entry_id = o.entry_id AND f.status = ?)
		ORDER BY created_at
		LIMIT ?`,
		StatusPending, formatTime(now), StatusInFlight, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending events: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}

	for _, evt := range events {
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox_events SET status = ? WHERE event_id = ?`,
			StatusInFlight, evt.EventID); err != nil {
			return nil, fmt.Errorf("claiming event %s: %w", evt.EventID, err)
		}
		evt.Status = StatusInFlight
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing dequeue: %w", err)
	}
	return events, nil
}

// CompleteEvent marks an event as acknowledged by the backend.
func (s *Store) CompleteEvent(ctx context.Context, eventID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = ? WHERE event_id = ?`,
		StatusCompleted, eventID); err != nil {
		return fmt.Errorf("completing event %s: %w", eventID, err)
	}
	return nil
}

// RequeueEvent returns an in-flight event to pending with an incremented
// attempt count and a backoff deadline. If a fresher pending event was
// enqueued for the same entry while this one was in flight, the in-flight
// event is dropped instead: the newer snapshot supersedes it.
func (s *Store) RequeueEvent(ctx context.Context, eventID string, attemptCount int, nextAttemptAt time.Time) error {
	return s.releaseEvent(ctx, eventID, attemptCount, formatTime(nextAttemptAt))
}

// ReturnEvent puts an in-flight event back to pending untouched — no attempt
// increment, no backoff. Used when a cycle aborts for reasons unrelated to
// the event itself (auth failure, shutdown).
func (s *Store) ReturnEvent(ctx context.Context, eventID string) error {
	return s.releaseEvent(ctx, eventID, -1, "")
}

// releaseEvent moves an in-flight event back to pending, dropping it when a
// newer pending event exists for the same entry. attemptCount < 0 leaves the
// stored count unchanged.
func (s *Store) releaseEvent(ctx context.Context, eventID string, attemptCount int, nextAttemptAt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning requeue transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var entryID string
	err = tx.QueryRowContext(ctx,
		`SELECT entry_id FROM outbox_events WHERE event_id = ?`, eventID).Scan(&entryID)
	if err != nil {
		return fmt.Errorf("looking up event %s: %w", eventID, err)
	}

	var superseded int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outbox_events
		WHERE entry_id = ? AND status = ? AND event_id != ?`,
		entryID, StatusPending, eventID).Scan(&superseded)
	if err != nil {
		return fmt.Errorf("checking for superseding event: %w", err)
	}

	if superseded > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM outbox_events WHERE event_id = ?`, eventID)
		if err != nil {
			return fmt.Errorf("dropping superseded event %s: %w", eventID, err)
		}
	} else if attemptCount >= 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE outbox_events
			SET status = ?, attempt_count = ?, next_attempt_at = ?
			WHERE event_id = ?`,
			StatusPending, attemptCount, nextAttemptAt, eventID)
		if err != nil {
			return fmt.Errorf("requeueing event %s: %w", eventID, err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE outbox_events SET status = ? WHERE event_id = ?`,
			StatusPending, eventID)
		if err != nil {
			return fmt.Errorf("returning event %s to pending: %w", eventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing requeue of event %s: %w", eventID, err)
	}
	return nil
}

// FailEvent marks an event as terminally failed. It will not be redispatched
// until explicitly re-enqueued via [Store.RetryFailed].
func (s *Store) FailEvent(ctx context.Context, eventID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = ? WHERE event_id = ?`,
		StatusFailed, eventID); err != nil {
		return fmt.Errorf("failing event %s: %w", eventID, err)
	}
	return nil
}

// RetryFailed re-enqueues all terminally failed events with a fresh retry
// budget. Failed events whose entry has since gathered a newer pending event
// are stale snapshots and are dropped instead. Returns the number re-enqueued.
func (s *Store) RetryFailed(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning retry transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM outbox_events
		WHERE status = ? AND entry_id IN (
		    SELECT entry_id FROM outbox_events WHERE status = ?)`,
		StatusFailed, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("dropping stale failed events: %w", err)
	}

	// An entry can accumulate several failed events (fail, new mutation,
	// fail again). Keep only the newest per entry so the bulk re-enqueue
	// below cannot trip the one-pending-per-entry index.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM outbox_events
		WHERE status = ? AND EXISTS (
		    SELECT 1 FROM outbox_events n
		    WHERE n.entry_id = outbox_events.entry_id
		      AND n.status = outbox_events.status
		      AND (n.created_at > outbox_events.created_at
		           OR (n.created_at = outbox_events.created_at
		               AND n.event_id > outbox_events.event_id)))`,
		StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("dropping superseded failed events: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = ?, attempt_count = 0, next_attempt_at = ''
		WHERE status = ?`,
		StatusPending, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("re-enqueueing failed events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("re-enqueueing failed events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing failed-event retry: %w", err)
	}
	return int(n), nil
}

// PruneCompleted deletes completed events created before cutoff. Completed
// events carry no state the entry rows don't already have; they are kept for
// a while only for debugging.
func (s *Store) PruneCompleted(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = ? AND created_at < ?`,
		StatusCompleted, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning completed events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning completed events: %w", err)
	}
	return int(n), nil
}

// GetEvent returns the event with the given id, or (nil, nil) if it does not
// exist.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM outbox_events WHERE event_id = ?`, eventID)
	return scanEvent(row)
}

// EventsForEntry returns all events referencing the entry, oldest first.
func (s *Store) EventsForEntry(ctx context.Context, entryID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM outbox_events WHERE entry_id = ? ORDER BY created_at`,
		entryID)
	if err != nil {
		return nil, fmt.Errorf("querying events for entry %s: %w", entryID, err)
	}
	return collectEvents(rows)
}

// Depths returns the per-status event counts.
func (s *Store) Depths(ctx context.Context) (QueueDepths, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM outbox_events GROUP BY status`)
	if err != nil {
		return QueueDepths{}, fmt.Errorf("counting events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var d QueueDepths
	for rows.Next() {
		var status EventStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return QueueDepths{}, fmt.Errorf("scanning event counts: %w", err)
		}
		switch status {
		case StatusPending:
			d.Pending = n
		case StatusInFlight:
			d.InFlight = n
		case StatusCompleted:
			d.Completed = n
		case StatusFailed:
			d.Failed = n
		}
	}
	return d, rows.Err()
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so the scan helpers can be
// reused.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*model.Entry, error) {
	var e model.Entry
	var tags string
	var needsSync, isSynced int
	var createdAt, updatedAt string

	err := s.Scan(
		&e.ID,
		&e.BackendID,
		&e.Title,
		&e.Content,
		&e.Mood,
		&tags,
		&needsSync,
		&isSynced,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entry row: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for entry %s: %w", e.ID, err)
	}
	e.NeedsSync = needsSync != 0
	e.IsSynced = isSynced != 0
	e.CreatedAt, _ = parseTime(createdAt)
	e.UpdatedAt, _ = parseTime(updatedAt)

	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]*model.Entry, error) {
	defer func() { _ = rows.Close() }()
	var entries []*model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEvent(s scanner) (*Event, error) {
	var evt Event
	var action, nextAttemptAt, createdAt string

	err := s.Scan(
		&evt.EventID,
		&evt.EntryID,
		&action,
		&evt.Payload,
		&evt.Status,
		&evt.AttemptCount,
		&nextAttemptAt,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event row: %w", err)
	}

	evt.Action = model.Action(action)
	evt.NextAttemptAt, _ = parseTime(nextAttemptAt)
	evt.CreatedAt, _ = parseTime(createdAt)

	return &evt, nil
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	defer func() { _ = rows.Close() }()
	var events []*Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is RFC 3339 with a fixed-width 9-digit fraction. Unlike
// RFC3339Nano it never strips trailing zeros, so the TEXT comparisons in the
// queue SQL (next_attempt_at <= now, ORDER BY created_at) stay chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
