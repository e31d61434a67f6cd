// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/tomtom215/sessiond/internal/engine"
	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/metrics"
	"github.com/tomtom215/sessiond/internal/relay"
)

// Config holds Manager settings.
type Config struct {
	// DataDir holds one session-<id> directory per session.
	DataDir string

	// StartTimeout bounds each engine start attempt.
	StartTimeout time.Duration

	// DetectionThreshold is the post-ready window in which a logout is flagged.
	DetectionThreshold time.Duration

	// ReconnectOnDisconnect reconnects authenticated sessions after a non-logout disconnect.
	ReconnectOnDisconnect bool

	// FastProbeTimeout bounds the probe made by IsSessionHealthy.
	FastProbeTimeout time.Duration

	// TeardownTimeout bounds engine destruction during cleanup.
	TeardownTimeout time.Duration
}

// DefaultConfig returns the default Manager settings.
func DefaultConfig() Config {
	return Config{
		DataDir:               "/data/sessions",
		StartTimeout:          90 * time.Second,
		DetectionThreshold:    120 * time.Second,
		ReconnectOnDisconnect: true,
		FastProbeTimeout:      3 * time.Second,
		TeardownTimeout:       10 * time.Second,
	}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithFs replaces the filesystem used for session directories.
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// Manager owns the registry and drives every session's state machine.
type Manager struct {
	cfg       Config
	registry  *Registry
	factory   engine.Factory
	publisher relay.Publisher
	fs        afero.Fs
	now       func() time.Time
	logger    zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	bg      sync.WaitGroup
	closed  atomic.Bool
}

// NewManager creates a Manager. A nil publisher discards events.
func NewManager(cfg Config, factory engine.Factory, publisher relay.Publisher, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = def.StartTimeout
	}
	if cfg.FastProbeTimeout <= 0 {
		cfg.FastProbeTimeout = def.FastProbeTimeout
	}
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = def.TeardownTimeout
	}
	if publisher == nil {
		publisher = relay.Nop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       cfg,
		factory:   factory,
		publisher: publisher,
		fs:        afero.NewOsFs(),
		now:       time.Now,
		logger:    logging.WithComponent("session"),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.registry = NewRegistry(RegistryOptions{Teardown: m.teardown, Now: m.now})
	return m
}

// Registry returns the manager's registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SessionDir returns the on-disk directory owned by session id.
func (m *Manager) SessionDir(id string) string {
	return filepath.Join(m.cfg.DataDir, "session-"+id)
}

// GetOrCreateSession registers a fresh session for userKey, superseding any current one.
func (m *Manager) GetOrCreateSession(ctx context.Context, userKey string, deviceInfo map[string]any) (string, error) {
	if m.closed.Load() {
		return "", ErrManagerClosed
	}
	rec, err := m.registry.GetOrCreate(ctx, userKey, deviceInfo)
	if err != nil {
		return "", err
	}
	metrics.RecordSessionCreated()
	logging.Ctx(ctx).Info().Str("session_id", rec.ID).Str("user_id", userKey).Msg("Session created")
	m.publisher.Publish(rec.ID, EventSessionCreated, map[string]any{"user_id": userKey})
	return rec.ID, nil
}

// StartSession attaches and starts an engine. Sessions that already own an
// engine, or are being reconnected, are left alone and nil is returned.
func (m *Manager) StartSession(ctx context.Context, id string) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	rec, err := m.current(id)
	if err != nil {
		return err
	}
	if rec.Reconnecting() || rec.State().HasEngine() {
		return nil
	}

	err = m.startEngine(ctx, rec, false)
	switch {
	case err == nil, errors.Is(err, errEngineAttached):
		return nil
	case errors.Is(err, errDestroyed):
		return m.missing(id)
	}
	logging.Ctx(ctx).Warn().Err(err).Str("session_id", id).Msg("Session start failed")
	m.publisher.Publish(id, EventInitFailure, map[string]any{"error": err.Error()})
	return err
}

// DestroySession logs the session out and tears it down. Always succeeds.
func (m *Manager) DestroySession(ctx context.Context, id string) error {
	return m.registry.Destroy(ctx, id, ReasonLogout)
}

// IsSessionHealthy reports whether id has a ready engine that answers a fast probe.
// It takes no lock across the probe and may be stale.
func (m *Manager) IsSessionHealthy(ctx context.Context, id string) bool {
	rec, ok := m.registry.Get(id)
	if !ok || rec.Reconnecting() {
		return false
	}
	eng, _ := rec.engineHandle()
	if eng == nil || !rec.Snapshot().IsReady {
		return false
	}
	return m.probe(ctx, eng, m.cfg.FastProbeTimeout) == nil
}

// Snapshot returns the observable state of id.
func (m *Manager) Snapshot(id string) (Snapshot, error) {
	rec, err := m.registry.Resolve(id)
	if err != nil {
		return Snapshot{}, err
	}
	return rec.Snapshot(), nil
}

// Touch records API activity on id.
func (m *Manager) Touch(id string) error {
	rec, err := m.registry.Resolve(id)
	if err != nil {
		return err
	}
	rec.Touch(m.now())
	return nil
}

// List returns snapshots of every registered session.
func (m *Manager) List() []Snapshot {
	recs := m.registry.List()
	out := make([]Snapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Snapshot())
	}
	return out
}

// Close destroys all sessions and waits for background work.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.cancel()
	n := m.registry.DestroyAll(ctx, ReasonShutdown)
	m.registry.Wait()

	done := make(chan struct{})
	go func() {
		m.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.logger.Info().Int("sessions", n).Msg("Session manager closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session goroutines: %w", ctx.Err())
	}
}

// current resolves id and rejects records that are no longer current for their user.
func (m *Manager) current(id string) (*Record, error) {
	rec, err := m.registry.Resolve(id)
	if err != nil {
		return nil, err
	}
	if !m.registry.IsUserSessionCurrent(id) {
		return nil, ErrSessionSuperseded
	}
	return rec, nil
}

// missing maps a record that vanished mid-operation to the caller-facing error.
func (m *Manager) missing(id string) error {
	if _, err := m.registry.Resolve(id); err != nil {
		return err
	}
	return ErrSessionNotFound
}

// startEngine creates, attaches, and starts one engine for rec.
func (m *Manager) startEngine(ctx context.Context, rec *Record, conservative bool) error {
	dir := m.SessionDir(rec.ID)
	eng, err := m.factory.New(rec.ID, engine.Options{DataDir: dir, Conservative: conservative})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	gen, err := rec.attach(eng, m.now())
	if err != nil {
		m.destroyEngine(rec, eng)
		return err
	}

	// The directory is created only once the record owns the engine, and a
	// teardown that raced the mkdir must not leave it behind.
	if err := m.fs.MkdirAll(dir, 0o700); err != nil {
		if released := rec.detach(gen, StateCreated, "", err.Error()); released != nil {
			m.destroyEngine(rec, released)
		}
		return fmt.Errorf("create session dir: %w", err)
	}
	if rec.State() == StateDestroyed {
		if err := m.fs.RemoveAll(dir); err != nil {
			m.logger.Warn().Err(err).Str("session_id", rec.ID).Msg("Session dir cleanup failed")
		}
		return errDestroyed
	}

	m.bg.Add(1)
	go m.consume(rec, eng, gen)

	startCtx, cancel := context.WithTimeout(ctx, m.cfg.StartTimeout)
	began := time.Now()
	err = eng.Start(startCtx)
	cancel()
	metrics.RecordEngineStart(conservative, time.Since(began), err)

	if err != nil {
		if released := rec.detach(gen, StateCreated, "", err.Error()); released != nil {
			m.destroyEngine(rec, released)
		}
		return fmt.Errorf("start engine: %w", err)
	}
	rec.Touch(m.now())
	m.logger.Info().Str("session_id", rec.ID).Bool("conservative", conservative).Msg("Engine started")
	return nil
}

// destroyEngine releases eng, logging failures.
func (m *Manager) destroyEngine(rec *Record, eng engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TeardownTimeout)
	defer cancel()
	if err := eng.Destroy(ctx); err != nil {
		m.logger.Warn().Err(err).Str("session_id", rec.ID).Msg("Engine teardown failed")
	}
}

// probe returns nil when eng reports CONNECTED within timeout.
func (m *Manager) probe(ctx context.Context, eng engine.Engine, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state, err := eng.LivenessState(probeCtx)
	switch {
	case err != nil:
		metrics.RecordHealthProbe("error")
		return err
	case state != engine.LivenessConnected:
		metrics.RecordHealthProbe("not_connected")
		return fmt.Errorf("engine state %q", state)
	}
	metrics.RecordHealthProbe("connected")
	return nil
}

// teardown releases the engine and directory of a removed record.
func (m *Manager) teardown(ctx context.Context, rec *Record, reason Reason) error {
	eng, ok := rec.markDestroyed()
	if !ok {
		return nil
	}

	var errs []error
	if eng != nil {
		destroyCtx, cancel := context.WithTimeout(ctx, m.cfg.TeardownTimeout)
		if err := eng.Destroy(destroyCtx); err != nil {
			errs = append(errs, fmt.Errorf("destroy engine: %w", err))
		}
		cancel()
	}
	if err := m.fs.RemoveAll(m.SessionDir(rec.ID)); err != nil {
		errs = append(errs, fmt.Errorf("remove session dir: %w", err))
	}

	metrics.RecordSessionDestroyed(string(reason))
	m.publisher.Publish(rec.ID, EventSessionDestroyed, map[string]any{"reason": reason})
	m.logger.Info().
		Str("session_id", rec.ID).
		Str("user_id", rec.UserID).
		Str("reason", string(reason)).
		Msg("Session destroyed")

	return errors.Join(errs...)
}
