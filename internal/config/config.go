// Package config loads and saves the warden configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the flat warden configuration. Durations are given in seconds so
// the file stays editable without duration-literal syntax.
type Config struct {
	Version string `yaml:"version"`

	// PolicyEngineEnabled is the kill switch. Disabled means every proposal
	// routes to a human reviewer regardless of matching rules.
	PolicyEngineEnabled bool `yaml:"policy_engine_enabled"`

	// DefaultReviewer receives assignments when the proposal names none.
	DefaultReviewer string `yaml:"default_reviewer"`

	// EscalationReviewer receives SLA escalations.
	EscalationReviewer string `yaml:"escalation_reviewer"`

	SLAWindowSeconds int `yaml:"sla_window_seconds"`
	SLAGraceSeconds  int `yaml:"sla_grace_seconds"`

	Workers              int `yaml:"workers"`
	PollIntervalSeconds  int `yaml:"poll_interval_seconds"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`

	MaxAttempts             int `yaml:"max_attempts"`
	BackoffBaseSeconds      int `yaml:"backoff_base_seconds"`
	BackoffMaxSeconds       int `yaml:"backoff_max_seconds"`
	ExecutionTimeoutSeconds int `yaml:"execution_timeout_seconds"`

	// StalledAfterSeconds is the inactivity window before a RUNNING run is
	// reported stalled.
	StalledAfterSeconds int `yaml:"stalled_after_seconds"`

	// HTTPAddr is the API listen address for `warden serve`.
	HTTPAddr string `yaml:"http_addr"`

	// Webhooks maps action types to delivery endpoints. Action types without
	// an endpoint fall back to the log connector.
	Webhooks map[string]string `yaml:"webhooks,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:                 "1",
		PolicyEngineEnabled:     true,
		DefaultReviewer:         "user:on-call",
		EscalationReviewer:      "user:governance-lead",
		SLAWindowSeconds:        4 * 3600,
		SLAGraceSeconds:         3600,
		Workers:                 4,
		PollIntervalSeconds:     2,
		SweepIntervalSeconds:    60,
		MaxAttempts:             5,
		BackoffBaseSeconds:      5,
		BackoffMaxSeconds:       15 * 60,
		ExecutionTimeoutSeconds: 30,
		StalledAfterSeconds:     30 * 60,
		HTTPAddr:                ":8787",
	}
}

// SLAWindow returns the reviewer SLA window.
func (c *Config) SLAWindow() time.Duration {
	return time.Duration(c.SLAWindowSeconds) * time.Second
}

// SLAGrace returns the post-breach grace before expiry.
func (c *Config) SLAGrace() time.Duration {
	return time.Duration(c.SLAGraceSeconds) * time.Second
}

// PollInterval returns the worker claim polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// SweepInterval returns the SLA/timeout sweeper interval.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// BackoffBase returns the first retry delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

// BackoffMax returns the retry delay ceiling.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSeconds) * time.Second
}

// ExecutionTimeout returns the per-connector-call deadline.
func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutSeconds) * time.Second
}

// StalledAfter returns the run inactivity window.
func (c *Config) StalledAfter() time.Duration {
	return time.Duration(c.StalledAfterSeconds) * time.Second
}

// Path returns the config file location: $WARDEN_CONFIG, or
// ~/.warden/config.yaml.
func Path() (string, error) {
	if p := os.Getenv("WARDEN_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".warden", "config.yaml"), nil
}

// Load reads the configuration, falling back to Default when the file does
// not exist. A present but unreadable or malformed file is an error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
