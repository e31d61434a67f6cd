// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

// Package engine defines the contract between sessiond and the per-session
// automation engine, plus a process-backed implementation.
//
// An Engine is opaque: sessiond starts it, probes its liveness, consumes its
// ordered event stream, and destroys it. The messaging protocol itself lives
// entirely behind this interface.
package engine

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
)

// LivenessConnected is the liveness state of a healthy engine.
const LivenessConnected = "CONNECTED"

// ReasonLogout is the disconnect reason reported for an explicit logout.
const ReasonLogout = "LOGOUT"

// EventType identifies an engine event.
type EventType string

const (
	EventQR              EventType = "qr"
	EventAuthenticated   EventType = "authenticated"
	EventReady           EventType = "ready"
	EventLoadingProgress EventType = "loading_progress"
	EventAuthFailure     EventType = "auth_failure"
	EventDisconnected    EventType = "disconnected"
	EventError           EventType = "error"
	EventMessage         EventType = "message"
)

// Event is one item of an engine's ordered event stream.
type Event struct {
	Type EventType `json:"type"`

	// QR is the pairing code for EventQR.
	QR string `json:"qr,omitempty"`

	// Phone is the account identity reported with EventReady.
	Phone string `json:"phone,omitempty"`

	// Reason is the disconnect reason for EventDisconnected.
	Reason string `json:"reason,omitempty"`

	// Percent and Message describe EventLoadingProgress and EventError.
	Percent int    `json:"percent,omitempty"`
	Message string `json:"message,omitempty"`

	// Payload carries engine specific data, republished untouched.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Engine is a running automation engine bound to one session.
//
// Events returns the same channel for the engine's lifetime; it is closed
// when the engine terminates. Destroy is safe to call more than once.
type Engine interface {
	Start(ctx context.Context) error
	Destroy(ctx context.Context) error
	LivenessState(ctx context.Context) (string, error)
	Events() <-chan Event
}

// Options configure a new engine.
type Options struct {
	// DataDir is the session's private directory for persisted credentials.
	DataDir string

	// Conservative requests the reduced automation footprint used as a fallback start.
	Conservative bool
}

// Factory creates engines. New must not start the engine.
type Factory interface {
	New(sessionID string, opts Options) (Engine, error)
}

var (
	// ErrNotConfigured is returned when no engine command is configured.
	ErrNotConfigured = errors.New("engine command not configured")

	// ErrNotStarted is returned by operations that need a running engine.
	ErrNotStarted = errors.New("engine not started")

	// ErrExited is returned when the engine terminated before answering.
	ErrExited = errors.New("engine exited")
)
