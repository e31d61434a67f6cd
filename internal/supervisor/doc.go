// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package supervisor runs sessiond's long-lived services under a suture v4
supervisor tree.

	sessiond
	├── data-layer
	│   └── transcode-sweeper
	├── session-layer
	│   ├── websocket-hub
	│   ├── relay-bridge        (NATS enabled)
	│   ├── health-monitor
	│   └── session-manager     (destroys sessions on shutdown)
	└── api-layer
	    └── http-server

Each layer is its own supervisor, so a service that keeps failing backs
off inside its layer without restarting its siblings in other layers.
Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog using the slog adapter from internal/logging.

On shutdown every service gets TreeConfig.ShutdownTimeout to return.
Services that miss it are listed by UnstoppedServiceReport. Requests
that race the session-manager shutdown see session.ErrManagerClosed.
*/
package supervisor
