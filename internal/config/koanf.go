// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/sessiond/config.yaml",
	"/etc/sessiond/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			MaxUploadBytes:  32 << 20, // 32MB

			CORSAllowedOrigins: []string{},
		},
		Sessions: SessionsConfig{
			DataDir:               "/data/sessions",
			StartTimeout:          90 * time.Second,
			DetectionThreshold:    120 * time.Second,
			ReconnectOnDisconnect: true,
			EventBuffer:           64,
		},
		Health: HealthConfig{
			Enabled:           true,
			Interval:          60 * time.Second,
			ProbeTimeout:      10 * time.Second,
			FastProbeTimeout:  3 * time.Second,
			ActivityGrace:     30 * time.Second,
			UnfinishedTimeout: 10 * time.Minute,
			InactiveTimeout:   12 * time.Hour,
		},
		Engine: EngineConfig{
			Command:          "",
			Args:             []string{},
			ConservativeArgs: []string{"--conservative"},
			DestroyGrace:     5 * time.Second,
		},
		Transcode: TranscodeConfig{
			Enabled:         true,
			FFmpegPath:      "",
			CacheDir:        "/data/transcode",
			IndexDir:        "/data/transcode/index",
			TTL:             time.Hour,
			SweepInterval:   10 * time.Minute,
			Timeout:         60 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "sessiond.sessions",
			ReconnectWait: 2 * time.Second,
			MaxReconnects: -1,
			Bridge:        true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"server.cors_allowed_origins",
	"engine.args",
	"engine.conservative_args",
}

// processSliceFields converts comma-separated env strings to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"max_upload_bytes":      "server.max_upload_bytes",
	"cors_allowed_origins":  "server.cors_allowed_origins",

	"session_data_dir":                "sessions.data_dir",
	"session_start_timeout":           "sessions.start_timeout",
	"session_detection_threshold":     "sessions.detection_threshold",
	"session_reconnect_on_disconnect": "sessions.reconnect_on_disconnect",
	"session_event_buffer":            "sessions.event_buffer",

	"health_enabled":            "health.enabled",
	"health_interval":           "health.interval",
	"health_probe_timeout":      "health.probe_timeout",
	"health_fast_probe_timeout": "health.fast_probe_timeout",
	"health_activity_grace":     "health.activity_grace",
	"health_unfinished_timeout": "health.unfinished_timeout",
	"health_inactive_timeout":   "health.inactive_timeout",

	"engine_command":           "engine.command",
	"engine_args":              "engine.args",
	"engine_conservative_args": "engine.conservative_args",
	"engine_destroy_grace":     "engine.destroy_grace",

	"transcode_enabled":          "transcode.enabled",
	"ffmpeg_path":                "transcode.ffmpeg_path",
	"transcode_cache_dir":        "transcode.cache_dir",
	"transcode_index_dir":        "transcode.index_dir",
	"transcode_ttl":              "transcode.ttl",
	"transcode_sweep_interval":   "transcode.sweep_interval",
	"transcode_timeout":          "transcode.timeout",
	"transcode_breaker_failures": "transcode.breaker_failures",
	"transcode_breaker_timeout":  "transcode.breaker_timeout",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_subject_prefix": "nats.subject_prefix",
	"nats_reconnect_wait": "nats.reconnect_wait",
	"nats_max_reconnects": "nats.max_reconnects",
	"nats_bridge":         "nats.bridge",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are ignored.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - SESSION_START_TIMEOUT -> sessions.start_timeout
//   - FFMPEG_PATH -> transcode.ffmpeg_path
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
