// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package middleware provides the HTTP middleware shared by the sessiond API.

  - RequestID: accepts or generates X-Request-ID and stores it in the
    logging context so every log line of a request carries request_id.
  - Prometheus: records request count, latency and in-flight requests,
    labelled by the chi route pattern rather than the raw path so session
    ids do not explode label cardinality.
  - AccessLog: one structured zerolog line per request.

All three are func(http.Handler) http.Handler and plug straight into
chi's r.Use. Response writers are wrapped with chi's WrapResponseWriter,
which keeps http.Hijacker available for websocket upgrades.
*/
package middleware
