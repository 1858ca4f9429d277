package config

import (
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Validate checks that the configuration is usable. The returned error is a
// criterio.FieldErrors keyed by YAML path.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if err := checkURL(c.APIURL, "http", "https"); err != nil {
		errs = errs.Append("api_url", err)
	}
	if err := checkURL(c.HubURL, "http", "https", "ws", "wss"); err != nil {
		errs = errs.Append("hub_url", err)
	}
	if c.PageSize < 1 {
		errs = errs.Append("page_size", fmt.Errorf("must be at least 1"))
	}
	if c.RequestTimeout <= 0 {
		errs = errs.Append("request_timeout", fmt.Errorf("must be positive"))
	}
	if c.Realtime.JoinTimeout <= 0 {
		errs = errs.Append("realtime.join_timeout", fmt.Errorf("must be positive"))
	}
	if c.Realtime.MaxRetries < 0 {
		errs = errs.Append("realtime.max_retries", fmt.Errorf("cannot be negative"))
	}
	if c.Realtime.Backoff <= 0 {
		errs = errs.Append("realtime.backoff", fmt.Errorf("must be positive"))
	}
	if c.Realtime.MaxBackoff < c.Realtime.Backoff {
		errs = errs.Append("realtime.max_backoff", fmt.Errorf("must not be less than realtime.backoff"))
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = errs.Append("metrics_addr", fmt.Errorf("invalid address %q: %w", c.MetricsAddr, err))
		}
	}
	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}

	return errs.ToError()
}

// ValidateDeep runs Validate and additionally checks that the config file
// and data directory are accessible.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		for _, fe := range asFieldErrors(err) {
			errs = errs.Append(fe.Field, fe.Err)
		}
	}

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("config", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir != "" {
		if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
			errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("data_dir", fmt.Errorf("cannot access %s: %w", c.DataDir, err))
		}
	}

	return errs.ToError()
}

// Warnings reports settings that are valid but probably unintended.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if u, err := url.Parse(c.APIURL); err == nil && u.Scheme == "http" && !isLocalHost(u.Hostname()) {
		warnings = append(warnings, ValidationWarning{
			Category: "Security",
			Item:     "api_url",
			Message:  "bearer token is sent over plain http",
		})
	}

	if c.Realtime.MaxRetries == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Realtime",
			Item:     "realtime.max_retries",
			Message:  "automatic reconnect is disabled",
		})
	}

	return warnings
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("url %q has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("url %q must use one of %v", raw, schemes)
}

func asFieldErrors(err error) criterio.FieldErrors {
	if fe, ok := err.(criterio.FieldErrors); ok { //nolint:errorlint // Validate returns the value unwrapped
		return fe
	}
	return criterio.FieldErrors{{Err: err}}
}

func isLocalHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
