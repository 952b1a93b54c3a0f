package sync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/offlinekit/journalsync/internal/state"
)

// mockQueue is an in-memory stand-in for the durable outbox.
type mockQueue struct {
	mu     sync.Mutex
	events map[string]*state.Event

	dequeueErr error
	pruned     int
}

func newMockQueue(events ...*state.Event) *mockQueue {
	q := &mockQueue{events: make(map[string]*state.Event)}
	for _, evt := range events {
		cp := *evt
		if cp.Status == "" {
			cp.Status = state.StatusPending
		}
		q.events[cp.EventID] = &cp
	}
	return q
}

func (q *mockQueue) DequeueBatch(_ context.Context, limit int, now time.Time) ([]*state.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.dequeueErr != nil {
		return nil, q.dequeueErr
	}

	var eligible []*state.Event
	for _, evt := range q.events {
		if evt.Status == state.StatusPending && !evt.NextAttemptAt.After(now) {
			eligible = append(eligible, evt)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].EventID < eligible[j].EventID
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	batch := make([]*state.Event, 0, len(eligible))
	for _, evt := range eligible {
		evt.Status = state.StatusInFlight
		cp := *evt
		batch = append(batch, &cp)
	}
	return batch, nil
}

func (q *mockQueue) CompleteEvent(_ context.Context, eventID string) error {
	return q.setStatus(eventID, state.StatusCompleted)
}

func (q *mockQueue) RequeueEvent(_ context.Context, eventID string, attemptCount int, nextAttemptAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	evt := q.events[eventID]
	evt.Status = state.StatusPending
	evt.AttemptCount = attemptCount
	evt.NextAttemptAt = nextAttemptAt
	return nil
}

func (q *mockQueue) ReturnEvent(_ context.Context, eventID string) error {
	return q.setStatus(eventID, state.StatusPending)
}

func (q *mockQueue) FailEvent(_ context.Context, eventID string) error {
	return q.setStatus(eventID, state.StatusFailed)
}

func (q *mockQueue) PruneCompleted(_ context.Context, cutoff time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for id, evt := range q.events {
		if evt.Status == state.StatusCompleted && evt.CreatedAt.Before(cutoff) {
			delete(q.events, id)
			n++
		}
	}
	q.pruned += n
	return n, nil
}

func (q *mockQueue) setStatus(eventID string, status state.EventStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events[eventID].Status = status
	return nil
}

func (q *mockQueue) get(eventID string) state.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.events[eventID]
}

// transportCall records one invocation of the mock transport.
type transportCall struct {
	method         string
	idempotencyKey string
	backendID      string
}

// mockTransport returns scripted errors per entry id and records every call.
type mockTransport struct {
	mu    sync.Mutex
	calls []transportCall

	// errs maps entry/backend id to the error every call for it returns.
	errs map[string]error
	// createID is the backend id returned by successful Create calls.
	createID string
}

func newMockTransport() *mockTransport {
	return &mockTransport{errs: make(map[string]error), createID: "backend-id"}
}

func (t *mockTransport) Create(_ context.Context, _, idempotencyKey string, _ []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, transportCall{method: "create", idempotencyKey: idempotencyKey})
	if err := t.errs[idempotencyKey]; err != nil {
		return "", err
	}
	return t.createID, nil
}

func (t *mockTransport) Update(_ context.Context, _, backendID string, _ []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, transportCall{method: "update", backendID: backendID})
	return t.errs[backendID]
}

func (t *mockTransport) Delete(_ context.Context, _, backendID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, transportCall{method: "delete", backendID: backendID})
	return t.errs[backendID]
}

func (t *mockTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// mockCreds hands out a fixed credential and counts invalidations.
type mockCreds struct {
	mu           sync.Mutex
	credential   string
	err          error
	invalidated  int
	acquisitions int
}

func (c *mockCreds) Credential(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquisitions++
	if c.err != nil {
		return "", c.err
	}
	return c.credential, nil
}

func (c *mockCreds) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
}

// markCall records one MarkSynced invocation.
type markCall struct {
	entryID   string
	backendID string
}

// mockMarker records sync acknowledgements.
type mockMarker struct {
	mu    sync.Mutex
	calls []markCall
	err   error
}

func (m *mockMarker) MarkSynced(_ context.Context, id, backendID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, markCall{entryID: id, backendID: backendID})
	return m.err
}
