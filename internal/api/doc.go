// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package api is the HTTP surface of sessiond, routed with chi.

Routes:

	GET    /api/v1/health/live               process liveness
	GET    /api/v1/sessions                  list sessions
	POST   /api/v1/sessions                  get-or-create the user's current session
	GET    /api/v1/sessions/{id}             session snapshot
	DELETE /api/v1/sessions/{id}             logout and destroy
	POST   /api/v1/sessions/{id}/start       start the engine
	POST   /api/v1/sessions/{id}/reconnect   reconnect (?wait=true blocks)
	GET    /api/v1/sessions/{id}/health      fast liveness probe
	GET    /api/v1/sessions/{id}/ws          websocket event stream
	POST   /api/v1/media/convert             transcode a voice note
	GET    /api/v1/media/formats             formats available for a content type
	GET    /metrics                          prometheus

JSON responses use the models.APIResponse envelope. Session errors map to
status codes: not found 404, superseded 409, reconnect in progress 409,
manager closed or engine not configured 503, start timeout 504, other
engine failures 502.

Media conversion takes the raw body with its Content-Type and an optional
key query parameter. When conversion fails the original bytes are
returned with X-Transcode-Fallback: true; when no transcoding engine is
available the request fails with 422.
*/
package api
