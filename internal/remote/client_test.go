package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/offlinekit/journalsync/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, 5*time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func failureKind(t *testing.T, err error) model.FailureKind {
	t.Helper()
	var re *model.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not a RemoteError", err)
	}
	return re.Kind
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not-a-url", "ftp://example.com"} {
		if _, err := NewClient(u, 0, testLogger()); err == nil {
			t.Errorf("NewClient(%q) succeeded, want error", u)
		}
	}
}

func TestCreate_Success(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotKey, gotContentType string
	var gotBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "backend-99"})
	})

	payload := []byte(`{"client_id":"local-1","content":"hello"}`)
	id, err := c.Create(context.Background(), "tok", "local-1", payload)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "backend-99" {
		t.Errorf("id = %q, want backend-99", id)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/entries" {
		t.Errorf("request = %s %s, want POST /v1/entries", gotMethod, gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", gotAuth)
	}
	if gotKey != "local-1" {
		t.Errorf("Idempotency-Key = %q, want local-1", gotKey)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if string(gotBody) != string(payload) {
		t.Errorf("body = %s, want payload passed through", gotBody)
	}
}

func TestCreate_MissingIDIsPermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.Create(context.Background(), "tok", "local-1", []byte(`{}`))
	if kind := failureKind(t, err); kind != model.FailurePermanent {
		t.Errorf("kind = %v, want permanent", kind)
	}
}

func TestCreate_NetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on
	c, err := NewClient(srv.URL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Create(context.Background(), "tok", "local-1", []byte(`{}`))
	if kind := failureKind(t, err); kind != model.FailureTransient {
		t.Errorf("kind = %v, want transient", kind)
	}
}

func TestUpdate_Success(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	if err := c.Update(context.Background(), "tok", "b-1", []byte(`{}`)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/v1/entries/b-1" {
		t.Errorf("request = %s %s, want PUT /v1/entries/b-1", gotMethod, gotPath)
	}
}

func TestDelete_Success(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.Delete(context.Background(), "tok", "b-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/entries/b-1" {
		t.Errorf("request = %s %s, want DELETE /v1/entries/b-1", gotMethod, gotPath)
	}
}

func TestDelete_NotFoundIsSuccess(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})
		if err := c.Delete(context.Background(), "tok", "b-1"); err != nil {
			t.Errorf("Delete with status %d = %v, want nil (already gone)", status, err)
		}
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   model.FailureKind
	}{
		{http.StatusUnauthorized, model.FailureAuth},
		{http.StatusRequestTimeout, model.FailureTransient},
		{http.StatusTooManyRequests, model.FailureTransient},
		{http.StatusInternalServerError, model.FailureTransient},
		{http.StatusBadGateway, model.FailureTransient},
		{http.StatusServiceUnavailable, model.FailureTransient},
		{http.StatusBadRequest, model.FailurePermanent},
		{http.StatusForbidden, model.FailurePermanent},
		{http.StatusUnprocessableEntity, model.FailurePermanent},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
		})
		err := c.Update(context.Background(), "tok", "b-1", []byte(`{}`))
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if kind := failureKind(t, err); kind != tt.kind {
			t.Errorf("status %d: kind = %v, want %v", tt.status, kind, tt.kind)
		}
		var re *model.RemoteError
		errors.As(err, &re)
		if re.StatusCode != tt.status {
			t.Errorf("StatusCode = %d, want %d", re.StatusCode, tt.status)
		}
	}
}

func TestServerMessageInError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"title too long"}`))
	})
	err := c.Update(context.Background(), "tok", "b-1", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "title too long"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not carry server message %q", err, want)
	}
}
