package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_MinimalAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "backend_url: https://api.example.com\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BackendURL != "https://api.example.com" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if want := filepath.Join(filepath.Dir(path), "token"); cfg.TokenFile != want {
		t.Errorf("TokenFile = %q, want %q", cfg.TokenFile, want)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("SyncInterval = %v, want 30s", cfg.SyncInterval)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.BatchSize)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.RequestTimeout)
	}
	if cfg.Telemetry != nil {
		t.Error("Telemetry set without a telemetry block")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
backend_url: http://localhost:8080
token_file: /etc/journalsync/token
sync_interval: 1m
batch_size: 100
max_attempts: 3
request_timeout: 5s
telemetry:
  otlp_endpoint: localhost:4317
  insecure: true
  service_name: journalsync-dev
  headers:
    Authorization: Bearer abc
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenFile != "/etc/journalsync/token" {
		t.Errorf("TokenFile = %q", cfg.TokenFile)
	}
	if cfg.SyncInterval != time.Minute || cfg.BatchSize != 100 || cfg.MaxAttempts != 3 {
		t.Errorf("cfg = %+v, want explicit values kept", cfg)
	}
	if cfg.Telemetry == nil || cfg.Telemetry.OTLPEndpoint != "localhost:4317" {
		t.Fatalf("Telemetry = %+v", cfg.Telemetry)
	}
	if !cfg.Telemetry.Insecure || cfg.Telemetry.ServiceName != "journalsync-dev" {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.Headers["Authorization"] != "Bearer abc" {
		t.Errorf("Headers = %v", cfg.Telemetry.Headers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"missing backend_url", "batch_size: 10\n", "backend_url is required"},
		{"bad scheme", "backend_url: ftp://example.com\n", "must be a valid http or https URL"},
		{"interval too short", "backend_url: https://x.com\nsync_interval: 1s\n", "too short"},
		{"interval too long", "backend_url: https://x.com\nsync_interval: 10m\n", "too long"},
		{"batch size out of range", "backend_url: https://x.com\nbatch_size: 1000\n", "out of range"},
		{"max attempts out of range", "backend_url: https://x.com\nmax_attempts: 50\n", "out of range"},
		{"timeout too short", "backend_url: https://x.com\nrequest_timeout: 100ms\n", "too short"},
		{"telemetry without endpoint", "backend_url: https://x.com\ntelemetry:\n  insecure: true\n", "otlp_endpoint is required"},
		{"unknown key", "backend_url: https://x.com\nbckend_url: typo\n", "bckend_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of missing file succeeded, want error")
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join(".config", "journalsync", "config.yaml")) {
		t.Errorf("DefaultPath = %q", path)
	}
}
