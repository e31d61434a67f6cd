// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/metrics"
)

// HealthConfig holds health supervisor settings.
type HealthConfig struct {
	Interval          time.Duration
	ProbeTimeout      time.Duration
	ActivityGrace     time.Duration
	UnfinishedTimeout time.Duration
	InactiveTimeout   time.Duration

	// TombstoneTTL is how long superseded ids keep resolving as superseded.
	TombstoneTTL time.Duration
}

// DefaultHealthConfig returns the default health supervisor settings.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Interval:          60 * time.Second,
		ProbeTimeout:      10 * time.Second,
		ActivityGrace:     30 * time.Second,
		UnfinishedTimeout: 10 * time.Minute,
		InactiveTimeout:   12 * time.Hour,
		TombstoneTTL:      time.Hour,
	}
}

// CycleResult summarizes one health cycle.
type CycleResult struct {
	Checked    int
	Skipped    int
	Probed     int
	Reconnects int
	Destroyed  int
}

// HealthMonitor periodically checks every current session.
// It implements suture.Service.
type HealthMonitor struct {
	manager *Manager
	cfg     HealthConfig
	logger  zerolog.Logger
}

// NewHealthMonitor creates a HealthMonitor for m.
func NewHealthMonitor(m *Manager, cfg HealthConfig) *HealthMonitor {
	def := DefaultHealthConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.TombstoneTTL <= 0 {
		cfg.TombstoneTTL = def.TombstoneTTL
	}
	return &HealthMonitor{
		manager: m,
		cfg:     cfg,
		logger:  logging.WithComponent("health"),
	}
}

// Serve runs a cycle every Interval until ctx is canceled.
func (h *HealthMonitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	h.logger.Info().Dur("interval", h.cfg.Interval).Msg("Health monitor started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res := h.RunCycle(ctx)
			h.logger.Debug().
				Int("checked", res.Checked).
				Int("skipped", res.Skipped).
				Int("probed", res.Probed).
				Int("reconnects", res.Reconnects).
				Int("destroyed", res.Destroyed).
				Msg("Health cycle complete")
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (h *HealthMonitor) String() string {
	return "session-health-monitor"
}

// RunCycle checks every current session once. Reconnects are scheduled in
// the background; timeouts destroy sessions synchronously.
func (h *HealthMonitor) RunCycle(ctx context.Context) CycleResult {
	began := time.Now()
	defer func() { metrics.RecordHealthCycle(time.Since(began)) }()

	m := h.manager
	now := m.now()
	var res CycleResult

	m.registry.PruneTombstones(now.Add(-h.cfg.TombstoneTTL))

	for _, rec := range m.registry.List() {
		if ctx.Err() != nil {
			return res
		}
		if !m.registry.IsUserSessionCurrent(rec.ID) {
			continue
		}
		res.Checked++

		if reason, expired := h.expired(rec, now); expired {
			h.logger.Info().Str("session_id", rec.ID).Str("reason", string(reason)).Msg("Destroying expired session")
			_ = m.registry.Destroy(ctx, rec.ID, reason)
			res.Destroyed++
			continue
		}

		switch h.check(ctx, rec, now) {
		case actionSkip:
			res.Skipped++
		case actionHealthy:
			res.Probed++
		case actionReconnect:
			res.Reconnects++
			m.ReconnectSession(rec.ID)
		case actionProbeFailed:
			res.Probed++
			res.Reconnects++
			m.ReconnectSession(rec.ID)
		}
	}
	return res
}

func (h *HealthMonitor) expired(rec *Record, now time.Time) (Reason, bool) {
	snap := rec.Snapshot()
	if h.cfg.UnfinishedTimeout > 0 && snap.StartedAt != nil && snap.ReadyAt == nil &&
		now.Sub(*snap.StartedAt) > h.cfg.UnfinishedTimeout {
		return ReasonUnfinishedTimeout, true
	}
	if h.cfg.InactiveTimeout > 0 && now.Sub(snap.LastActivityAt) > h.cfg.InactiveTimeout {
		return ReasonInactiveTimeout, true
	}
	return "", false
}

type healthAction int

const (
	actionSkip healthAction = iota
	actionHealthy
	actionReconnect
	actionProbeFailed
)

func (h *HealthMonitor) check(ctx context.Context, rec *Record, now time.Time) healthAction {
	if rec.Reconnecting() {
		return actionSkip
	}
	if now.Sub(rec.LastActivity()) < h.cfg.ActivityGrace {
		return actionSkip
	}

	snap := rec.Snapshot()
	if snap.StartedAt == nil {
		// Never started: nothing to reconnect.
		return actionSkip
	}
	if snap.Halted != "" {
		// Logged out or rejected; only an explicit start revives it.
		return actionSkip
	}
	if snap.HasEngine && snap.ReadyAt == nil {
		// Pairing in progress; the unfinished timeout governs it.
		return actionSkip
	}

	eng, _ := rec.engineHandle()
	if eng == nil || !snap.IsReady {
		return actionReconnect
	}
	if err := h.manager.probe(ctx, eng, h.cfg.ProbeTimeout); err != nil {
		h.logger.Warn().Err(err).Str("session_id", rec.ID).Msg("Liveness probe failed, reconnecting")
		return actionProbeFailed
	}
	return actionHealthy
}
