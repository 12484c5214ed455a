// Copyright 2026 The nlm Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the client.
//
// Configuration is loaded from a single file specified by either the
// NLM_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no file discovery; with neither set, the
// built-in defaults apply and the client works with zero configuration.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${NLM_HOME}, and ${VAR:-default} patterns are expanded. No
// other environment variables override config values.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the client.
type Config struct {
	// Endpoint configures where and how requests are sent.
	Endpoint EndpointConfig `yaml:"endpoint"`

	// Auth configures credential loading and refresh.
	Auth AuthConfig `yaml:"auth"`

	// Retry configures the per-call retry policy.
	Retry RetryConfig `yaml:"retry"`

	// RateLimit paces requests client-side, ahead of the backend's
	// own throttling.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// EndpointConfig configures the request target.
type EndpointConfig struct {
	// BaseURL is the application origin.
	// Default: https://notebooklm.google.com
	BaseURL string `yaml:"base_url"`

	// SourcePath is the default source-path query parameter.
	// Default: /
	SourcePath string `yaml:"source_path"`

	// BuildLabel is the frontend build sent as the bl query
	// parameter. Empty omits the parameter.
	BuildLabel string `yaml:"build_label"`

	// Timeout bounds one physical send, as a duration string.
	// Default: 30s
	Timeout string `yaml:"timeout"`
}

// AuthConfig configures credential handling.
type AuthConfig struct {
	// StoragePath is the Playwright storage state file. Empty uses
	// the NLM_AUTH_FILE / NLM_AUTH_JSON / default-path resolution.
	StoragePath string `yaml:"storage_path"`

	// SettleDelay is how long a refresh waits before handing out the
	// new token. Default: 500ms
	SettleDelay string `yaml:"settle_delay"`

	// RefreshTimeout bounds one token fetch. Default: 30s
	RefreshTimeout string `yaml:"refresh_timeout"`
}

// RetryConfig configures retries of rate-limited sends.
type RetryConfig struct {
	// MaxRetries bounds resends after the first attempt. Default: 2
	MaxRetries int `yaml:"max_retries"`

	// Base is the first backoff delay; doubles per retry. Default: 1s
	Base string `yaml:"base"`

	// Network opts network failures into the retry budget.
	// Default: false (a lost response may mean an applied write).
	Network bool `yaml:"network"`
}

// RateLimitConfig paces outgoing requests.
type RateLimitConfig struct {
	// RPS is the sustained request rate. Zero or negative disables
	// client-side pacing. Default: 1
	RPS float64 `yaml:"rps"`

	// Burst is how many requests may go out back to back. Default: 2
	Burst int `yaml:"burst"`
}

// EnvConfig selects the config file for Load.
const EnvConfig = "NLM_CONFIG"

// Default returns the built-in configuration. It validates, so the
// client runs with no config file at all.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			BaseURL:    "https://notebooklm.google.com",
			SourcePath: "/",
			Timeout:    "30s",
		},
		Auth: AuthConfig{
			SettleDelay:    "500ms",
			RefreshTimeout: "30s",
		},
		Retry: RetryConfig{
			MaxRetries: 2,
			Base:       "1s",
		},
		RateLimit: RateLimitConfig{
			RPS:   1,
			Burst: 2,
		},
	}
}

// Load loads configuration from the file named by NLM_CONFIG, or
// returns the defaults when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults. Environment variables do not override config values;
// the only expansion performed is ${VAR} patterns in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":     os.Getenv("HOME"),
		"NLM_HOME": os.Getenv("NLM_HOME"),
	}
	c.Auth.StoragePath = expandVars(c.Auth.StoragePath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Endpoint.BaseURL == "" {
		errs = append(errs, fmt.Errorf("endpoint.base_url is required"))
	} else if parsed, err := url.Parse(c.Endpoint.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("endpoint.base_url %q is not an absolute URL", c.Endpoint.BaseURL))
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"endpoint.timeout", c.Endpoint.Timeout},
		{"auth.settle_delay", c.Auth.SettleDelay},
		{"auth.refresh_timeout", c.Auth.RefreshTimeout},
		{"retry.base", c.Retry.Base},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.name, err))
		}
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must not be negative"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Errorf("rate_limit.burst must be at least 1 when rps is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// duration parses a validated duration field, falling back when the
// field is empty.
func duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Timeout returns the per-send timeout.
func (c *Config) Timeout() time.Duration {
	return duration(c.Endpoint.Timeout, 30*time.Second)
}

// SettleDelay returns the post-refresh settle delay.
func (c *Config) SettleDelay() time.Duration {
	return duration(c.Auth.SettleDelay, 500*time.Millisecond)
}

// RefreshTimeout returns the token fetch bound.
func (c *Config) RefreshTimeout() time.Duration {
	return duration(c.Auth.RefreshTimeout, 30*time.Second)
}

// RetryBase returns the first backoff delay.
func (c *Config) RetryBase() time.Duration {
	return duration(c.Retry.Base, time.Second)
}

// Limiter builds the client-side pacer, or nil when pacing is
// disabled.
func (c *Config) Limiter() *rate.Limiter {
	if c.RateLimit.RPS <= 0 {
		return nil
	}
	burst := c.RateLimit.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RateLimit.RPS), burst)
}
