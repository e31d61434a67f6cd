// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package session manages the lifecycle of per-user messaging sessions.

A Registry indexes session records by id and by user key and guarantees that
at most one record is current for a user. The Manager drives each record's
state machine: it attaches engines, consumes every engine's event stream in
order on a dedicated goroutine, and publishes state changes through a
relay.Publisher. The HealthMonitor periodically probes current sessions,
enforces the unfinished and inactive timeouts, and reconnects unhealthy ones.

# States

	created -> initializing -> authenticated -> ready
	ready -> disconnected
	any -> destroyed

An engine is attached exactly while a record is initializing, authenticated,
or ready. Reconnection is a flag on the record, not a state.

# Published Events

qr, authenticated, ready, loading_progress, message, disconnected,
auth_failure, init_failure, reconnecting, reconnected, reconnect_failed,
session_created, session_destroyed.
*/
package session
