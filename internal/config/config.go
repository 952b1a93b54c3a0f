// Package config loads and validates the journalsync YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// BackendURL is the base URL of the journal backend
	// (e.g. "https://api.example.com").
	BackendURL string `yaml:"backend_url"`

	// TokenFile is the path to the file holding the API token. Defaults to
	// "token" next to the config file.
	TokenFile string `yaml:"token_file"`

	// SyncInterval controls how often the outbox is drained.
	// Minimum 10s, maximum 5m. Defaults to 30s if unset.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// BatchSize caps how many events one dispatch cycle processes.
	// Defaults to 25.
	BatchSize int `yaml:"batch_size"`

	// MaxAttempts is the delivery ceiling before an event is marked
	// terminally failed. Defaults to 5.
	MaxAttempts int `yaml:"max_attempts"`

	// RequestTimeout bounds each backend call. Defaults to 15s.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "journalsync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/journalsync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "journalsync", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required fields are present and well-formed and
// fills in defaults. configDir anchors the default token file location.
func (c *Config) validate(configDir string) error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	u, err := url.ParseRequestURI(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("backend_url %q must be a valid http or https URL", c.BackendURL)
	}

	if c.TokenFile == "" {
		c.TokenFile = filepath.Join(configDir, "token")
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = 30 * time.Second
	}
	if c.SyncInterval < 10*time.Second {
		return fmt.Errorf("sync_interval %v is too short (minimum 10s)", c.SyncInterval)
	}
	if c.SyncInterval > 5*time.Minute {
		return fmt.Errorf("sync_interval %v is too long (maximum 5m)", c.SyncInterval)
	}

	if c.BatchSize == 0 {
		c.BatchSize = 25
	}
	if c.BatchSize < 1 || c.BatchSize > 500 {
		return fmt.Errorf("batch_size %d out of range (1–500)", c.BatchSize)
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > 20 {
		return fmt.Errorf("max_attempts %d out of range (1–20)", c.MaxAttempts)
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.RequestTimeout < time.Second {
		return fmt.Errorf("request_timeout %v is too short (minimum 1s)", c.RequestTimeout)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
