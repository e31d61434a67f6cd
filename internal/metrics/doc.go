// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package metrics provides Prometheus metrics collection and export for sessiond.

Collectors are registered once at package init through promauto and updated
through the Record* helpers so call sites stay one line.

# Overview

The package provides metrics for:
  - HTTP request latency and throughput
  - Session lifecycle (created, destroyed by reason, state transitions)
  - Health probes and reconnection outcomes
  - Suspected automation detection
  - Transcode cache efficiency and conversion latency
  - Relay publishing and WebSocket delivery
  - Circuit breaker state

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Example Queries

Sessions destroyed per reason over the last hour:

	sum by (reason) (increase(session_destroyed_total[1h]))

Transcode cache hit ratio:

	rate(transcode_cache_hits_total[5m]) /
	(rate(transcode_cache_hits_total[5m]) + rate(transcode_cache_misses_total[5m]))
*/
package metrics
