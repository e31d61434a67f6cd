// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/sessiond/internal/metrics"
)

// ReconnectSession schedules a reconnect and returns immediately.
// It is a no-op when a reconnect is already running for id.
func (m *Manager) ReconnectSession(id string) {
	if m.closed.Load() {
		return
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := m.Reconnect(m.baseCtx, id); err != nil && !errors.Is(err, ErrReconnectInProgress) {
			m.logger.Debug().Err(err).Str("session_id", id).Msg("Background reconnect ended")
		}
	}()
}

// Reconnect replaces id's engine, trying a conservative start if the primary
// start fails. Concurrent calls for the same session are dropped with
// ErrReconnectInProgress; the gate is released in every outcome.
func (m *Manager) Reconnect(ctx context.Context, id string) error {
	rec, err := m.current(id)
	if err != nil {
		return err
	}
	if !rec.reconnecting.CompareAndSwap(false, true) {
		m.logger.Info().Str("session_id", id).Msg("Reconnect already in progress, dropping request")
		metrics.RecordReconnect("dropped")
		return ErrReconnectInProgress
	}
	defer rec.reconnecting.Store(false)

	log := m.logger.With().Str("session_id", id).Str("user_id", rec.UserID).Logger()
	m.publisher.Publish(id, EventReconnecting, nil)

	stale, err := rec.resetForReconnect()
	if err != nil {
		return m.missing(id)
	}
	if stale != nil {
		m.destroyEngine(rec, stale)
	}

	primaryErr := m.startEngine(ctx, rec, false)
	if done, err := m.reconnectOutcome(id, primaryErr, "primary"); done {
		return err
	}
	log.Warn().Err(primaryErr).Msg("Primary reconnect failed, trying conservative start")

	fallbackErr := m.startEngine(ctx, rec, true)
	if done, err := m.reconnectOutcome(id, fallbackErr, "conservative"); done {
		return err
	}

	cause := errors.Join(primaryErr, fallbackErr)
	log.Error().Err(cause).Msg("Reconnect failed")
	metrics.RecordReconnect("failed")
	m.publisher.Publish(id, EventReconnectFailed, map[string]any{"error": cause.Error()})
	return fmt.Errorf("%w: %w", ErrReconnectFailed, cause)
}

// reconnectOutcome reports whether a start attempt ended the reconnect.
func (m *Manager) reconnectOutcome(id string, err error, mode string) (bool, error) {
	switch {
	case err == nil, errors.Is(err, errEngineAttached):
		metrics.RecordReconnect("reconnected")
		m.publisher.Publish(id, EventReconnected, map[string]any{"mode": mode})
		return true, nil
	case errors.Is(err, errDestroyed):
		return true, m.missing(id)
	}
	return false, nil
}
