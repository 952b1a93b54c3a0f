// Package remote implements the HTTP transport to the journal backend. It
// provides a [Client] whose methods map one-to-one onto the sync engine's
// transport contract and which classifies every failure as transient,
// permanent, or auth so the dispatcher can branch without knowing HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/offlinekit/journalsync/internal/model"
)

// defaultTimeout bounds each remote call. Expiry is reported as a transient
// failure.
const defaultTimeout = 15 * time.Second

// Client talks to the journal backend's entries API.
type Client struct {
	baseURL string
	hc      *http.Client
	log     *slog.Logger
}

// NewClient creates a Client for the backend at baseURL. A non-positive
// timeout falls back to the default.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.ParseRequestURI(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("backend URL %q must be a valid http or https URL", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		log:     logger,
	}, nil
}

// Create pushes a new entry and returns the backend-assigned id. The
// idempotency key (the local entry id) is sent on every attempt so a retry
// after a lost acknowledgement cannot produce a duplicate remote record.
func (c *Client) Create(ctx context.Context, credential, idempotencyKey string, payload []byte) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/entries", credential, payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", &model.RemoteError{Kind: model.FailureTransient, Err: fmt.Errorf("create entry: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp, "create entry"); err != nil {
		return "", err
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &model.RemoteError{
			Kind:       model.FailureTransient,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decoding create response: %w", err),
		}
	}
	if body.ID == "" {
		return "", &model.RemoteError{
			Kind:       model.FailurePermanent,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("create response carried no id"),
		}
	}
	return body.ID, nil
}

// Update overwrites the backend entry identified by backendID with the
// payload. The backend applies last-write-wins by id, so repeating an update
// is harmless.
func (c *Client) Update(ctx context.Context, credential, backendID string, payload []byte) error {
	req, err := c.newRequest(ctx, http.MethodPut, "/v1/entries/"+url.PathEscape(backendID), credential, payload)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &model.RemoteError{Kind: model.FailureTransient, Err: fmt.Errorf("update entry %s: %w", backendID, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return classifyStatus(resp, "update entry "+backendID)
}

// Delete removes the backend entry identified by backendID. A 404 counts as
// success: the record being gone is the goal, and a repeated delete after a
// lost acknowledgement lands here.
func (c *Client) Delete(ctx context.Context, credential, backendID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/v1/entries/"+url.PathEscape(backendID), credential, nil)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &model.RemoteError{Kind: model.FailureTransient, Err: fmt.Errorf("delete entry %s: %w", backendID, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil
	}
	return classifyStatus(resp, "delete entry "+backendID)
}

// newRequest builds an authenticated JSON request. Request construction
// failures are permanent — the same inputs will fail the same way forever.
func (c *Client) newRequest(ctx context.Context, method, path, credential string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &model.RemoteError{Kind: model.FailurePermanent, Err: fmt.Errorf("building %s request: %w", method, err)}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// classifyStatus maps a response status onto the failure taxonomy. A nil
// return means the call succeeded.
func classifyStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		return &model.RemoteError{
			Kind:       model.FailureAuth,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: credential rejected", op),
		}

	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return &model.RemoteError{
			Kind:       model.FailureTransient,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", op, serverMessage(resp)),
		}

	default: // remaining 4xx: the request itself is the problem
		return &model.RemoteError{
			Kind:       model.FailurePermanent,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", op, serverMessage(resp)),
		}
	}
}

// serverMessage extracts the backend's error message when it sent one.
func serverMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Message != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, body.Message)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
