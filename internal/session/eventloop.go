// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sessiond/internal/engine"
	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/metrics"
)

// consume is the single reader of eng's event stream. Events are applied in
// emission order; events from an engine that is no longer attached are dropped.
func (m *Manager) consume(rec *Record, eng engine.Engine, gen uint64) {
	defer m.bg.Done()
	log := logging.ForSession("relay", rec.ID, rec.UserID)

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("Session event loop panicked")
			if released := rec.detach(gen, StateCreated, "", "event loop panic"); released != nil {
				m.destroyEngine(rec, released)
				m.publisher.Publish(rec.ID, EventInitFailure, map[string]any{"error": "internal error"})
			}
		}
	}()

	for ev := range eng.Events() {
		m.apply(rec, gen, ev, &log)
	}

	if released := rec.detach(gen, StateCreated, "", "engine exited"); released != nil {
		log.Warn().Msg("Engine event stream closed unexpectedly")
		m.destroyEngine(rec, released)
		m.publisher.Publish(rec.ID, EventInitFailure, map[string]any{"error": "engine exited"})
	}
}

func (m *Manager) apply(rec *Record, gen uint64, ev engine.Event, log *zerolog.Logger) {
	now := m.now()

	rec.mu.Lock()
	if rec.generation != gen || rec.eng == nil {
		rec.mu.Unlock()
		log.Debug().Str("event", string(ev.Type)).Msg("Dropping event from detached engine")
		return
	}

	switch ev.Type {
	case engine.EventQR:
		rec.qr = ev.QR
		rec.mu.Unlock()
		rec.Touch(now)
		m.publisher.Publish(rec.ID, EventQR, map[string]any{"qr": ev.QR})

	case engine.EventAuthenticated:
		if rec.authenticated && (rec.state == StateAuthenticated || rec.state == StateReady) {
			rec.mu.Unlock()
			log.Debug().Msg("Ignoring duplicate authenticated event")
			return
		}
		rec.authenticated = true
		if rec.state != StateReady {
			rec.state = StateAuthenticated
		}
		rec.mu.Unlock()
		rec.Touch(now)
		m.publisher.Publish(rec.ID, EventAuthenticated, nil)

	case engine.EventReady:
		if rec.ready {
			rec.mu.Unlock()
			log.Debug().Msg("Ignoring duplicate ready event")
			return
		}
		rec.ready = true
		rec.authenticated = true
		rec.qr = ""
		rec.state = StateReady
		rec.readyAt = now
		if ev.Phone != "" {
			rec.phone = ev.Phone
		}
		phone := rec.phone
		rec.mu.Unlock()
		rec.Touch(now)
		log.Info().Str("phone", phone).Msg("Session ready")
		m.publisher.Publish(rec.ID, EventReady, map[string]any{"phone": phone})

	case engine.EventLoadingProgress:
		rec.mu.Unlock()
		rec.Touch(now)
		m.publisher.Publish(rec.ID, EventLoadingProgress, map[string]any{
			"percent": ev.Percent,
			"message": ev.Message,
		})

	case engine.EventMessage:
		rec.mu.Unlock()
		rec.Touch(now)
		m.publisher.Publish(rec.ID, EventMessage, ev.Payload)

	case engine.EventDisconnected:
		readyAt := rec.readyAt
		wasAuthenticated := rec.authenticated
		rec.mu.Unlock()
		m.handleDisconnect(rec, gen, ev.Reason, readyAt, wasAuthenticated, now, log)

	case engine.EventAuthFailure:
		rec.mu.Unlock()
		msg := ev.Message
		if msg == "" {
			msg = "authentication failed"
		}
		if released := rec.detach(gen, StateCreated, HaltAuthFailure, msg); released != nil {
			log.Warn().Str("error", msg).Msg("Engine authentication failed")
			m.publisher.Publish(rec.ID, EventAuthFailure, map[string]any{"error": msg})
			m.destroyEngine(rec, released)
		}

	case engine.EventError:
		rec.mu.Unlock()
		msg := ev.Message
		if msg == "" {
			msg = "engine error"
		}
		if released := rec.detach(gen, StateCreated, "", msg); released != nil {
			log.Warn().Str("error", msg).Msg("Engine reported fatal error")
			m.publisher.Publish(rec.ID, EventInitFailure, map[string]any{"error": msg})
			m.destroyEngine(rec, released)
		}

	default:
		rec.mu.Unlock()
		log.Debug().Str("event", string(ev.Type)).Msg("Ignoring unknown engine event")
		return
	}

	metrics.RecordSessionEvent(string(ev.Type))
}

// handleDisconnect applies an engine disconnect. A logout within the
// detection threshold of ready is reported but keeps authentication.
func (m *Manager) handleDisconnect(rec *Record, gen uint64, reason string, readyAt time.Time, wasAuthenticated bool, now time.Time, log *zerolog.Logger) {
	logout := reason == engine.ReasonLogout
	sinceReady := now.Sub(readyAt)
	suspected := logout && !readyAt.IsZero() && sinceReady < m.cfg.DetectionThreshold
	clearAuth := logout && !suspected
	halt := ""
	if clearAuth {
		halt = HaltLogout
	}

	released := rec.detach(gen, StateDisconnected, halt, "disconnected: "+reason)
	if released == nil {
		return
	}

	if suspected {
		log.Warn().
			Dur("since_ready", sinceReady).
			Dur("threshold", m.cfg.DetectionThreshold).
			Msg("Logout shortly after ready, possible automation detection")
		metrics.RecordAutomationSuspected()
	} else {
		log.Info().Str("reason", reason).Msg("Session disconnected")
	}

	m.publisher.Publish(rec.ID, EventDisconnected, map[string]any{
		"reason":              reason,
		"suspected_detection": suspected,
		"is_authenticated":    wasAuthenticated && !clearAuth,
	})
	m.destroyEngine(rec, released)

	if m.cfg.ReconnectOnDisconnect && !logout && wasAuthenticated && m.registry.IsUserSessionCurrent(rec.ID) {
		m.ReconnectSession(rec.ID)
	}
}
