// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Sessions.DetectionThreshold != 120*time.Second {
		t.Errorf("Sessions.DetectionThreshold = %v, want 120s", cfg.Sessions.DetectionThreshold)
	}
	if cfg.Health.Interval != 60*time.Second {
		t.Errorf("Health.Interval = %v, want 60s", cfg.Health.Interval)
	}
	if cfg.Health.ProbeTimeout != 10*time.Second || cfg.Health.FastProbeTimeout != 3*time.Second {
		t.Errorf("probe timeouts = %v/%v, want 10s/3s", cfg.Health.ProbeTimeout, cfg.Health.FastProbeTimeout)
	}
	if cfg.Health.ActivityGrace != 30*time.Second {
		t.Errorf("Health.ActivityGrace = %v, want 30s", cfg.Health.ActivityGrace)
	}
	if cfg.Health.UnfinishedTimeout != 10*time.Minute {
		t.Errorf("Health.UnfinishedTimeout = %v, want 10m", cfg.Health.UnfinishedTimeout)
	}
	if cfg.Health.InactiveTimeout != 12*time.Hour {
		t.Errorf("Health.InactiveTimeout = %v, want 12h", cfg.Health.InactiveTimeout)
	}
	if cfg.Transcode.TTL != time.Hour || cfg.Transcode.SweepInterval != 10*time.Minute {
		t.Errorf("transcode ttl/sweep = %v/%v, want 1h/10m", cfg.Transcode.TTL, cfg.Transcode.SweepInterval)
	}
	if cfg.NATS.Enabled || !cfg.NATS.Bridge {
		t.Errorf("NATS = %+v, want disabled with bridge on", cfg.NATS)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"SESSION_START_TIMEOUT", "sessions.start_timeout"},
		{"HEALTH_INACTIVE_TIMEOUT", "health.inactive_timeout"},
		{"FFMPEG_PATH", "transcode.ffmpeg_path"},
		{"NATS_URL", "nats.url"},
		{"NATS_BRIDGE", "nats.bridge"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("SESSION_DETECTION_THRESHOLD", "45s")
	t.Setenv("ENGINE_ARGS", "--headless, --profile=a")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Sessions.DetectionThreshold != 45*time.Second {
		t.Errorf("DetectionThreshold = %v, want 45s", cfg.Sessions.DetectionThreshold)
	}
	if len(cfg.Engine.Args) != 2 || cfg.Engine.Args[1] != "--profile=a" {
		t.Errorf("Engine.Args = %v", cfg.Engine.Args)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if got := cfg.Server.CORSAllowedOrigins; len(got) != 2 || got[1] != "https://b.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", got)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
health:
  interval: 2m
transcode:
  ttl: 30m
nats:
  enabled: true
  url: nats://nats.internal:4222
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Health.Interval != 2*time.Minute {
		t.Errorf("Health.Interval = %v, want 2m", cfg.Health.Interval)
	}
	if cfg.Transcode.TTL != 30*time.Minute {
		t.Errorf("Transcode.TTL = %v, want 30m", cfg.Transcode.TTL)
	}
	if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://nats.internal:4222" {
		t.Errorf("NATS = %+v", cfg.NATS)
	}
	// Untouched values keep defaults.
	if cfg.Health.ProbeTimeout != 10*time.Second {
		t.Errorf("Health.ProbeTimeout = %v, want default 10s", cfg.Health.ProbeTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"empty data dir", func(c *Config) { c.Sessions.DataDir = "" }, "SESSION_DATA_DIR"},
		{"zero start timeout", func(c *Config) { c.Sessions.StartTimeout = 0 }, "SESSION_START_TIMEOUT"},
		{"probe longer than interval", func(c *Config) { c.Health.ProbeTimeout = 2 * time.Minute }, "HEALTH_PROBE_TIMEOUT"},
		{"health disabled skips checks", func(c *Config) { c.Health.Enabled = false; c.Health.Interval = 0 }, ""},
		{"zero ttl", func(c *Config) { c.Transcode.TTL = 0 }, "TRANSCODE_TTL"},
		{"transcode disabled skips checks", func(c *Config) { c.Transcode.Enabled = false; c.Transcode.CacheDir = "" }, ""},
		{"zero breaker failures", func(c *Config) { c.Transcode.BreakerFailures = 0 }, "TRANSCODE_BREAKER_FAILURES"},
		{"bad nats scheme", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "http://x:4222" }, "NATS_URL"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"cors origins", func(c *Config) { c.Server.CORSAllowedOrigins = []string{"https://app.example.com", "http://localhost:3000"} }, ""},
		{"cors wildcard", func(c *Config) { c.Server.CORSAllowedOrigins = []string{"*"} }, ""},
		{"cors origin with path", func(c *Config) { c.Server.CORSAllowedOrigins = []string{"https://app.example.com/ui"} }, "CORS_ALLOWED_ORIGINS"},
		{"cors origin without scheme", func(c *Config) { c.Server.CORSAllowedOrigins = []string{"app.example.com"} }, "CORS_ALLOWED_ORIGINS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := s.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
}
