// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package session

import "errors"

var (
	// ErrSessionNotFound is returned for ids the registry has never seen or already forgot.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionSuperseded is returned for a session replaced by a newer one for the same user.
	ErrSessionSuperseded = errors.New("session superseded")

	// ErrReconnectInProgress is returned when a reconnect request is dropped by the gate.
	ErrReconnectInProgress = errors.New("reconnect already in progress")

	// ErrReconnectFailed is returned when both the primary and conservative start failed.
	ErrReconnectFailed = errors.New("reconnect failed")

	// ErrManagerClosed is returned after Close.
	ErrManagerClosed = errors.New("session manager closed")
)
