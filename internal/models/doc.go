// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package models defines the JSON request and response shapes of the sessiond
HTTP API.

Every endpoint except /metrics and the websocket upgrade answers with an
APIResponse envelope:

	{
	  "status": "success",
	  "data": {"session_id": "0192f0c4-...", "user_id": "3f9a..."},
	  "metadata": {"timestamp": "2026-10-14T12:00:00Z", "request_id": "..."}
	}

Errors carry a machine-readable code:

	{
	  "status": "error",
	  "data": null,
	  "error": {"code": "SESSION_SUPERSEDED", "message": "session superseded"},
	  "metadata": {"timestamp": "2026-10-14T12:00:00Z"}
	}

Session state itself is returned as session.Snapshot, which carries its
own JSON tags.
*/
package models
