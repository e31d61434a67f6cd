// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// The tests below swap the global logger and must not run in parallel.

func TestInit(t *testing.T) {
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		Init(Config{Level: "debug", Service: "sessiond", NoTimestamp: true, Output: &buf})
		Debug().Str("session_id", "s1").Msg("Engine started")

		out := buf.String()
		for _, want := range []string{`"level":"debug"`, `"service":"sessiond"`, `"session_id":"s1"`, `"message":"Engine started"`} {
			if !strings.Contains(out, want) {
				t.Errorf("output %q missing %s", out, want)
			}
		}
		if strings.Contains(out, `"time"`) {
			t.Errorf("output %q has a timestamp", out)
		}
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		Init(Config{Level: "warn", Output: &buf})
		Info().Msg("hidden")
		Warn().Msg("shown")

		if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
			t.Errorf("output = %q", buf.String())
		}
		if GetLevel() != zerolog.WarnLevel {
			t.Errorf("GetLevel() = %v", GetLevel())
		}
	})

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		Init(Config{Format: "console", NoTimestamp: true, Output: &buf})
		Info().Msg("plain text")

		out := buf.String()
		if strings.HasPrefix(out, "{") || !strings.Contains(out, "plain text") {
			t.Errorf("console output = %q", out)
		}
	})
}

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestForSession(t *testing.T) {
	buf := captureGlobal(t)

	l := ForSession("registry", "sess-1", "user-1")
	l.Info().Msg("Session created")

	out := buf.String()
	for _, want := range []string{`"component":"registry"`, `"session_id":"sess-1"`, `"user_id":"user-1"`, "Session created"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestCtx(t *testing.T) {
	buf := captureGlobal(t)

	ctx := ContextWithRequestID(context.Background(), "req-9")
	ctx = ContextWithSessionID(ctx, "sess-9")
	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-9"`) || !strings.Contains(out, `"session_id":"sess-9"`) {
		t.Errorf("context fields missing: %s", out)
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("expected empty request id for bare context")
	}
}

func TestCtx_StoredLogger(t *testing.T) {
	captureGlobal(t)

	var own bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&own))
	Ctx(ctx).Info().Msg("own")

	if !strings.Contains(own.String(), "own") {
		t.Errorf("stored logger not used: %q", own.String())
	}
}

func TestSlogHandler(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(prevLevel)

	tests := []struct {
		name   string
		log    func(l *slog.Logger)
		want   []string
		absent []string
	}{
		{
			name: "attrs before group stay top level",
			log: func(l *slog.Logger) {
				l.With("service", "health-monitor").WithGroup("supervisor").Warn("restarting", "attempt", 2)
			},
			want:   []string{`"level":"warn"`, `"service":"health-monitor"`, `"supervisor.attempt":2`, "restarting"},
			absent: []string{`"supervisor.service"`},
		},
		{
			name: "attrs after group are qualified",
			log: func(l *slog.Logger) {
				l.WithGroup("supervisor").With("service", "relay-bridge").WithGroup("backoff").Info("waiting", "seconds", 15)
			},
			want:   []string{`"supervisor.service":"relay-bridge"`, `"supervisor.backoff.seconds":15`},
			absent: []string{`"supervisor.backoff.service"`, `"service":"relay-bridge"`},
		},
		{
			name: "group values flatten",
			log: func(l *slog.Logger) {
				l.Info("event", slog.Group("svc", slog.String("name", "hub"), slog.Int("restarts", 1)))
			},
			want: []string{`"svc.name":"hub"`, `"svc.restarts":1`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(slog.New(NewSlogHandler(NewTestLogger(&buf))))

			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output %q missing %s", out, want)
				}
			}
			for _, bad := range tt.absent {
				if strings.Contains(out, bad) {
					t.Errorf("output %q contains %s", out, bad)
				}
			}
		})
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	cases := map[slog.Level]zerolog.Level{
		slog.LevelDebug - 4: zerolog.TraceLevel,
		slog.LevelDebug:     zerolog.DebugLevel,
		slog.LevelInfo:      zerolog.InfoLevel,
		slog.LevelWarn:      zerolog.WarnLevel,
		slog.LevelError:     zerolog.ErrorLevel,
	}
	for in, want := range cases {
		if got := slogToZerologLevel(in); got != want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestWatermillAdapter(t *testing.T) {
	buf := captureGlobal(t)

	a := NewWatermillAdapter().With(watermill.LogFields{"topic": "sessions.abc"})
	a.Error("publish failed", errors.New("nats down"), watermill.LogFields{"uuid": "m1"})

	out := buf.String()
	for _, want := range []string{`"component":"relay"`, `"topic":"sessions.abc"`, `"uuid":"m1"`, `"error":"nats down"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}
