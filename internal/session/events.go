// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package session

// Event names published to relay subscribers.
const (
	EventSessionCreated   = "session_created"
	EventSessionDestroyed = "session_destroyed"
	EventQR               = "qr"
	EventAuthenticated    = "authenticated"
	EventReady            = "ready"
	EventLoadingProgress  = "loading_progress"
	EventMessage          = "message"
	EventDisconnected     = "disconnected"
	EventAuthFailure      = "auth_failure"
	EventInitFailure      = "init_failure"
	EventReconnecting     = "reconnecting"
	EventReconnected      = "reconnected"
	EventReconnectFailed  = "reconnect_failed"
)

// Reason is why a session was destroyed.
type Reason string

const (
	ReasonLogout            Reason = "logout"
	ReasonSuperseded        Reason = "superseded"
	ReasonUnfinishedTimeout Reason = "unfinished_timeout"
	ReasonInactiveTimeout   Reason = "inactive_timeout"
	ReasonShutdown          Reason = "shutdown"
)

// Halt reasons recorded on a session that must not be restarted automatically.
const (
	HaltLogout      = "logout"
	HaltAuthFailure = "auth_failure"
)
