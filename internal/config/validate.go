// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package config

import (
	"fmt"
	"net/url"
	"time"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	if err := c.validateHealth(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	for _, origin := range c.Server.CORSAllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS: %w", err)
		}
	}
	return nil
}

// validateOrigin accepts "*" or a scheme://host[:port] origin.
func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") {
		return fmt.Errorf("invalid origin %q: want scheme://host[:port]", origin)
	}
	return nil
}

func (c *Config) validateSessions() error {
	if c.Sessions.DataDir == "" {
		return fmt.Errorf("SESSION_DATA_DIR is required")
	}
	if err := requirePositive("SESSION_START_TIMEOUT", c.Sessions.StartTimeout); err != nil {
		return err
	}
	if c.Sessions.DetectionThreshold < 0 {
		return fmt.Errorf("SESSION_DETECTION_THRESHOLD must not be negative")
	}
	if c.Sessions.EventBuffer < 0 {
		return fmt.Errorf("SESSION_EVENT_BUFFER must not be negative")
	}
	return nil
}

func (c *Config) validateHealth() error {
	if !c.Health.Enabled {
		return nil
	}
	checks := []struct {
		name string
		d    time.Duration
	}{
		{"HEALTH_INTERVAL", c.Health.Interval},
		{"HEALTH_PROBE_TIMEOUT", c.Health.ProbeTimeout},
		{"HEALTH_FAST_PROBE_TIMEOUT", c.Health.FastProbeTimeout},
		{"HEALTH_UNFINISHED_TIMEOUT", c.Health.UnfinishedTimeout},
		{"HEALTH_INACTIVE_TIMEOUT", c.Health.InactiveTimeout},
	}
	for _, chk := range checks {
		if err := requirePositive(chk.name, chk.d); err != nil {
			return err
		}
	}
	if c.Health.ActivityGrace < 0 {
		return fmt.Errorf("HEALTH_ACTIVITY_GRACE must not be negative")
	}
	if c.Health.ProbeTimeout >= c.Health.Interval {
		return fmt.Errorf("HEALTH_PROBE_TIMEOUT (%s) must be shorter than HEALTH_INTERVAL (%s)",
			c.Health.ProbeTimeout, c.Health.Interval)
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if !c.Transcode.Enabled {
		return nil
	}
	if c.Transcode.CacheDir == "" {
		return fmt.Errorf("TRANSCODE_CACHE_DIR is required when transcoding is enabled")
	}
	if c.Transcode.IndexDir == "" {
		return fmt.Errorf("TRANSCODE_INDEX_DIR is required when transcoding is enabled")
	}
	for name, d := range map[string]time.Duration{
		"TRANSCODE_TTL":            c.Transcode.TTL,
		"TRANSCODE_SWEEP_INTERVAL": c.Transcode.SweepInterval,
		"TRANSCODE_TIMEOUT":        c.Transcode.Timeout,
	} {
		if err := requirePositive(name, d); err != nil {
			return err
		}
	}
	if c.Transcode.BreakerFailures == 0 {
		return fmt.Errorf("TRANSCODE_BREAKER_FAILURES must be at least 1")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT_PREFIX is required when NATS is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func requirePositive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted.
// Supports nats://, tls://, ws:// and wss:// schemes.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222, nats.example.com)")
	}

	return nil
}
