// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Sessions   SessionsConfig   `koanf:"sessions"`
	Health     HealthConfig     `koanf:"health"`
	Engine     EngineConfig     `koanf:"engine"`
	Transcode  TranscodeConfig  `koanf:"transcode"`
	NATS       NATSConfig       `koanf:"nats"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitReqs is the number of requests allowed per RateLimitWindow per client IP.
	// Zero disables rate limiting.
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// MaxUploadBytes bounds the body of media conversion requests.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty disables cross-origin access.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// SessionsConfig holds session registry and state machine settings.
type SessionsConfig struct {
	// DataDir is the root under which each session keeps session-<id>.
	DataDir string `koanf:"data_dir"`

	// StartTimeout bounds a single engine start attempt.
	StartTimeout time.Duration `koanf:"start_timeout"`

	// DetectionThreshold is the window after ready during which a logout
	// is flagged as suspected automation detection.
	DetectionThreshold time.Duration `koanf:"detection_threshold"`

	// ReconnectOnDisconnect schedules a reconnect when an authenticated
	// session is disconnected by the engine for a reason other than logout.
	ReconnectOnDisconnect bool `koanf:"reconnect_on_disconnect"`

	// EventBuffer is the reader-side buffer between the engine and the relay.
	EventBuffer int `koanf:"event_buffer"`
}

// HealthConfig holds health and reconnection supervisor settings.
type HealthConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Interval          time.Duration `koanf:"interval"`
	ProbeTimeout      time.Duration `koanf:"probe_timeout"`
	FastProbeTimeout  time.Duration `koanf:"fast_probe_timeout"`
	ActivityGrace     time.Duration `koanf:"activity_grace"`
	UnfinishedTimeout time.Duration `koanf:"unfinished_timeout"`
	InactiveTimeout   time.Duration `koanf:"inactive_timeout"`
}

// EngineConfig configures the process-backed automation engine.
type EngineConfig struct {
	// Command is the bridge executable launched once per session.
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`

	// ConservativeArgs are appended for the reduced-footprint fallback start.
	ConservativeArgs []string `koanf:"conservative_args"`

	// DestroyGrace is how long a bridge may take to exit after a destroy command.
	DestroyGrace time.Duration `koanf:"destroy_grace"`
}

// TranscodeConfig holds transcode cache settings.
type TranscodeConfig struct {
	Enabled bool `koanf:"enabled"`

	// FFmpegPath is the bundled binary checked first during discovery.
	FFmpegPath string `koanf:"ffmpeg_path"`

	CacheDir      string        `koanf:"cache_dir"`
	IndexDir      string        `koanf:"index_dir"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Timeout       time.Duration `koanf:"timeout"`

	// BreakerFailures is the number of consecutive engine failures that opens the breaker.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// NATSConfig holds settings for the NATS session event relay.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`

	// SubjectPrefix is prepended to the session id to form the subject.
	SubjectPrefix string `koanf:"subject_prefix"`

	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	MaxReconnects int           `koanf:"max_reconnects"`

	// Bridge feeds local websocket clients from the NATS subscription.
	// When false, events go to NATS and local clients directly.
	Bridge bool `koanf:"bridge"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig holds suture tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
