// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

/*
Package main is the entry point for the sessiond server.

sessiond hosts one automation engine per messaging account, keyed by a
stable user key, and exposes the sessions over a REST and websocket API.
An optional transcode cache converts inbound voice media to Ogg/Opus.

# Application Architecture

Long-running components run under a Suture v4 supervision tree:

	RootSupervisor ("sessiond")
	├── DataSupervisor ("data-layer")
	│   ├── Transcode sweeper (expired artifact removal)
	│   └── Transcode index (badger, closed on shutdown)
	├── SessionSupervisor ("session-layer")
	│   ├── WebSocket hub
	│   ├── Relay bridge (NATS enabled only)
	│   ├── Relay publisher (NATS enabled only, closed on shutdown)
	│   ├── Health monitor (health.enabled)
	│   └── Session manager (destroys every engine on shutdown)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Component initialization order:

 1. Configuration: koanf v2 with defaults, an optional YAML file and env vars
 2. Logging: zerolog with JSON or console output
 3. Engine factory: one bridge process per session
 4. Relay: websocket hub, plus the NATS publisher and bridge when enabled
 5. Session manager and health monitor
 6. Transcode cache: ffmpeg discovery, badger index, breaker
 7. HTTP server: chi router with request id, CORS, rate limit and metrics middleware
 8. Supervisor tree

# Configuration

	Priority: Environment variables > Config file > Defaults

Common environment variables:

	HTTP_PORT=8080
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console
	SESSION_DATA_DIR=/data/sessions
	ENGINE_COMMAND=/usr/local/bin/wa-bridge
	TRANSCODE_ENABLED=true
	FFMPEG_PATH=/opt/ffmpeg/bin/ffmpeg
	NATS_ENABLED=false
	NATS_URL=nats://127.0.0.1:4222
	CORS_ALLOWED_ORIGINS=https://console.example.com

The config file is read from CONFIG_PATH, ./config.yaml or
/etc/sessiond/config.yaml.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests, every engine is destroyed and the transcode index is
closed. Services that miss their shutdown timeout are reported before exit.
*/
package main
