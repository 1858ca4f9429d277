// Package config handles configuration loading and validation for huddle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	APIURL         string         `yaml:"api_url"`
	HubURL         string         `yaml:"hub_url"`
	PageSize       int            `yaml:"page_size"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	Realtime       RealtimeConfig `yaml:"realtime"`
	MetricsAddr    string         `yaml:"metrics_addr"`
	DataDir        string         `yaml:"-"` // set by caller, not from config file
}

// RealtimeConfig holds comment channel settings.
type RealtimeConfig struct {
	JoinTimeout time.Duration `yaml:"join_timeout"`
	// MaxRetries bounds dial attempts and reconnects. Zero disables both.
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		APIURL:         "http://localhost:5000/api",
		HubURL:         "http://localhost:5000/chat",
		PageSize:       2,
		RequestTimeout: 30 * time.Second,
		Realtime: RealtimeConfig{
			JoinTimeout: 10 * time.Second,
			MaxRetries:  3,
			Backoff:     500 * time.Millisecond,
			MaxBackoff:  10 * time.Second,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
// MaxRetries is left alone since zero is meaningful.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.PageSize == 0 {
		c.PageSize = defaults.PageSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.Realtime.JoinTimeout == 0 {
		c.Realtime.JoinTimeout = defaults.Realtime.JoinTimeout
	}
	if c.Realtime.Backoff == 0 {
		c.Realtime.Backoff = defaults.Realtime.Backoff
	}
	if c.Realtime.MaxBackoff == 0 {
		c.Realtime.MaxBackoff = defaults.Realtime.MaxBackoff
	}
}

// CredentialsFile returns the path to the stored user credentials.
func (c *Config) CredentialsFile() string {
	return filepath.Join(c.DataDir, "user.json")
}
