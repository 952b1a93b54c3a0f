// Package auth supplies access credentials for the sync engine. The current
// implementation reads a long-lived API token from a file on disk; rotating
// the token is a matter of replacing the file and letting the next
// invalidation pick it up.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ErrAuthRequired signals that no valid credential can be produced and the
// user has to re-authenticate (here: provide a token file).
var ErrAuthRequired = errors.New("authentication required")

// TokenProvider serves the API token from a file, cached after the first
// read. Invalidate drops the cache so a rotated token file takes effect on
// the next acquisition.
type TokenProvider struct {
	path string
	log  *slog.Logger

	mu    sync.Mutex
	token string
}

// NewTokenProvider creates a TokenProvider reading from the given file path.
// The file is not touched until the first credential request.
func NewTokenProvider(path string, logger *slog.Logger) *TokenProvider {
	return &TokenProvider{path: path, log: logger}
}

// Credential returns the cached token, reading the file on a cache miss. A
// missing or empty file maps to [ErrAuthRequired].
func (p *TokenProvider) Credential(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("token file %q missing: %w", p.path, ErrAuthRequired)
		}
		return "", fmt.Errorf("reading token file %q: %w", p.path, err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("token file %q is empty: %w", p.path, ErrAuthRequired)
	}

	p.token = token
	return token, nil
}

// Invalidate discards the cached token. The next [TokenProvider.Credential]
// call re-reads the file, picking up a rotated token if one was written.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.log.Info("credential cache invalidated", "path", p.path)
}
