// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/afero"

	"github.com/tomtom215/sessiond/internal/api"
	"github.com/tomtom215/sessiond/internal/config"
	"github.com/tomtom215/sessiond/internal/engine"
	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/relay"
	"github.com/tomtom215/sessiond/internal/session"
	"github.com/tomtom215/sessiond/internal/supervisor"
	"github.com/tomtom215/sessiond/internal/supervisor/services"
	"github.com/tomtom215/sessiond/internal/transcode"
	"github.com/tomtom215/sessiond/internal/websocket"
)

// components holds everything main wires into the supervisor tree.
type components struct {
	cfg *config.Config

	hub       *websocket.Hub
	manager   *session.Manager
	monitor   *session.HealthMonitor
	media     *transcode.Cache
	index     *badger.DB
	publisher *relay.WatermillPublisher
	bridge    *relay.Bridge
	server    *http.Server
}

// componentOptions overrides collaborators in tests.
type componentOptions struct {
	factory engine.Factory
	fs      afero.Fs
	natsSub func(relay.NATSConfig) (message.Subscriber, error)
	natsPub func(relay.NATSConfig) (*relay.WatermillPublisher, error)
}

func buildComponents(cfg *config.Config) (*components, error) {
	return buildComponentsWith(cfg, componentOptions{})
}

func buildComponentsWith(cfg *config.Config, opts componentOptions) (*components, error) {
	if opts.natsSub == nil {
		opts.natsSub = relay.NewNATSSubscriber
	}
	if opts.natsPub == nil {
		opts.natsPub = relay.NewNATSPublisher
	}
	if opts.factory == nil {
		opts.factory = engine.NewProcessFactory(engine.ProcessConfig{
			Command:          cfg.Engine.Command,
			Args:             cfg.Engine.Args,
			ConservativeArgs: cfg.Engine.ConservativeArgs,
			DestroyGrace:     cfg.Engine.DestroyGrace,
			EventBuffer:      cfg.Sessions.EventBuffer,
		})
	}

	c := &components{cfg: cfg}
	c.hub = websocket.NewHub(session.EventSessionDestroyed)

	var publisher relay.Publisher = c.hub
	if cfg.NATS.Enabled {
		natsCfg := relay.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			ReconnectWait: cfg.NATS.ReconnectWait,
			MaxReconnects: cfg.NATS.MaxReconnects,
		}
		pub, err := opts.natsPub(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("nats publisher: %w", err)
		}
		c.publisher = pub
		if cfg.NATS.Bridge {
			sub, err := opts.natsSub(natsCfg)
			if err != nil {
				_ = pub.Close()
				return nil, fmt.Errorf("nats subscriber: %w", err)
			}
			// Local subscribers are fed through the bridge so every instance
			// delivers each event exactly once.
			c.bridge = relay.NewBridge(sub, relay.Wildcard(cfg.NATS.SubjectPrefix), c.hub)
			publisher = pub
		} else {
			publisher = relay.NewFanout(c.hub, pub)
		}
		logging.Info().
			Str("url", cfg.NATS.URL).
			Str("subject_prefix", cfg.NATS.SubjectPrefix).
			Bool("bridge", cfg.NATS.Bridge).
			Msg("NATS relay enabled")
	}

	sessionCfg := session.DefaultConfig()
	sessionCfg.DataDir = cfg.Sessions.DataDir
	sessionCfg.StartTimeout = cfg.Sessions.StartTimeout
	sessionCfg.DetectionThreshold = cfg.Sessions.DetectionThreshold
	sessionCfg.ReconnectOnDisconnect = cfg.Sessions.ReconnectOnDisconnect
	sessionCfg.FastProbeTimeout = cfg.Health.FastProbeTimeout

	var sessionOpts []session.Option
	if opts.fs != nil {
		sessionOpts = append(sessionOpts, session.WithFs(opts.fs))
	}
	c.manager = session.NewManager(sessionCfg, opts.factory, publisher, sessionOpts...)

	if cfg.Health.Enabled {
		healthCfg := session.DefaultHealthConfig()
		healthCfg.Interval = cfg.Health.Interval
		healthCfg.ProbeTimeout = cfg.Health.ProbeTimeout
		healthCfg.ActivityGrace = cfg.Health.ActivityGrace
		healthCfg.UnfinishedTimeout = cfg.Health.UnfinishedTimeout
		healthCfg.InactiveTimeout = cfg.Health.InactiveTimeout
		c.monitor = session.NewHealthMonitor(c.manager, healthCfg)
	}

	if err := c.buildMedia(opts.fs); err != nil {
		c.closePublisher()
		return nil, err
	}

	handler := api.NewHandler(c.manager, c.media, c.hub, cfg.Server.MaxUploadBytes)
	router := api.NewRouter(handler, api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		CORSMaxAge:         api.DefaultChiMiddlewareConfig().CORSMaxAge,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})

	c.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return c, nil
}

// buildMedia creates the transcode cache. When transcoding is disabled or
// ffmpeg cannot be found the cache still answers format queries with an
// in-memory index and reports conversion as unavailable.
func (c *components) buildMedia(fs afero.Fs) error {
	tc := c.cfg.Transcode
	cacheCfg := transcode.Config{
		CacheDir:        tc.CacheDir,
		TTL:             tc.TTL,
		Timeout:         tc.Timeout,
		BreakerFailures: tc.BreakerFailures,
		BreakerTimeout:  tc.BreakerTimeout,
	}

	var conv transcode.Converter
	indexDir := ""
	if tc.Enabled {
		if path, ok := transcode.NewDetector(tc.FFmpegPath).Find(); ok {
			conv = transcode.NewFFmpeg(path)
		} else {
			logging.Warn().Msg("ffmpeg not found; media is served unconverted")
		}
		indexDir = tc.IndexDir
	}
	if fs == nil && !tc.Enabled {
		fs = afero.NewMemMapFs()
	}

	db, err := transcode.OpenIndex(indexDir)
	if err != nil {
		return err
	}

	var cacheOpts []transcode.Option
	if fs != nil {
		cacheOpts = append(cacheOpts, transcode.WithFs(fs))
	}
	cache, err := transcode.New(cacheCfg, db, conv, cacheOpts...)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("transcode cache: %w", err)
	}
	c.index = db
	c.media = cache
	return nil
}

func (c *components) closePublisher() {
	if c.publisher != nil {
		_ = c.publisher.Close()
	}
}

// addServices registers every long-running component with tree.
func (c *components) addServices(tree *supervisor.SupervisorTree) {
	if c.cfg.Transcode.Enabled {
		tree.AddDataService(transcode.NewSweeper(c.media, c.cfg.Transcode.SweepInterval))
	}
	tree.AddDataService(services.NewShutdownService("transcode-index", 10*time.Second,
		func(context.Context) error { return c.index.Close() }))

	tree.AddSessionService(services.NewRunnerService("websocket-hub", c.hub))
	if c.bridge != nil {
		tree.AddSessionService(c.bridge)
	}
	if c.publisher != nil {
		tree.AddSessionService(services.NewShutdownService("relay-publisher", 10*time.Second,
			func(context.Context) error { return c.publisher.Close() }))
	}
	if c.monitor != nil {
		tree.AddSessionService(c.monitor)
	}
	tree.AddSessionService(services.NewShutdownService("session-manager", c.cfg.Supervisor.ShutdownTimeout, c.manager.Close))

	tree.AddAPIService(services.NewHTTPServerService(c.server, c.server.Addr, c.cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", c.server.Addr).Msg("HTTP server service added")
}
