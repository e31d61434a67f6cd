// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

// Package config provides layered configuration loading for sessiond.
//
// Configuration is assembled with Koanf v2 from three sources, later layers
// overriding earlier ones:
//
//  1. Built-in defaults (see defaultConfig)
//  2. An optional YAML file: $CONFIG_PATH, ./config.yaml, /etc/sessiond/config.yaml
//  3. Environment variables, mapped explicitly to koanf paths
//
// Example config.yaml:
//
//	server:
//	  port: 8080
//	sessions:
//	  data_dir: /data/sessions
//	  start_timeout: 90s
//	health:
//	  interval: 60s
//	transcode:
//	  ttl: 1h
//	nats:
//	  enabled: true
//	  url: nats://127.0.0.1:4222
//
// Every loaded Config passes Validate before it is returned.
package config
