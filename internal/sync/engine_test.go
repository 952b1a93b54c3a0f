package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/offlinekit/journalsync/internal/model"
)

func TestEngine_RunOnce(t *testing.T) {
	q := newMockQueue(pendingEvent("e1", model.ActionCreate, ""))
	tr := newMockTransport()
	e := NewEngine(newTestDispatcher(q, tr, &mockCreds{credential: "tok"}, &mockMarker{}, Config{}),
		time.Minute, testLogger())

	stats, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Delivered != 1 {
		t.Errorf("Delivered = %d, want 1", stats.Delivered)
	}
}

func TestEngine_TriggerSyncNeverBlocks(t *testing.T) {
	e := NewEngine(newTestDispatcher(newMockQueue(), newMockTransport(),
		&mockCreds{credential: "tok"}, &mockMarker{}, Config{}), time.Minute, testLogger())

	// No loop is draining runNow; repeated triggers must still return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			e.TriggerSync()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TriggerSync blocked")
	}
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e := NewEngine(newTestDispatcher(newMockQueue(), newMockTransport(),
		&mockCreds{credential: "tok"}, &mockMarker{}, Config{}), time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestEngine_RunExecutesTriggeredCycle(t *testing.T) {
	q := newMockQueue(pendingEvent("e1", model.ActionCreate, ""))
	tr := newMockTransport()
	creds := &mockCreds{credential: "tok"}
	// Fail credential acquisition until the trigger fires so the initial
	// pass delivers nothing.
	creds.err = errors.New("not yet")
	e := NewEngine(newTestDispatcher(q, tr, creds, &mockMarker{}, Config{}), time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()

	// Wait for the initial pass to consume its (failing) acquisition, then
	// let the trigger run a real cycle.
	deadline := time.After(2 * time.Second)
	for {
		creds.mu.Lock()
		n := creds.acquisitions
		creds.mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("initial dispatch never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	creds.mu.Lock()
	creds.err = nil
	creds.mu.Unlock()
	e.TriggerSync()

	deadline = time.After(2 * time.Second)
	for {
		if tr.callCount() == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("triggered cycle never delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-errc
}
