// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

// Package logging provides centralized zerolog-based structured logging for sessiond.
//
// Every component logs through the global logger managed here so that session
// lifecycle events, health probes, and transcode runs share one JSON stream with
// consistent field names.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("session_id", id).Msg("Session created")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Liveness probe failed")
//
// # Field Conventions
//
//   - session_id: opaque session token
//   - user_id: derived identity key (never raw device info)
//   - event: engine or relay event name
//   - reason: destroy or disconnect reason
//   - component: emitting subsystem (registry, health, transcode, relay)
//
// # Adapters
//
// [NewSlogLogger] bridges zerolog to log/slog for sutureslog, and
// [NewWatermillAdapter] implements watermill.LoggerAdapter for the NATS relay.
//
// # Configuration
//
// Environment Variables (via internal/config):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
package logging
