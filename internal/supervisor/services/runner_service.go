// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package services

import (
	"context"
	"time"

	"github.com/tomtom215/sessiond/internal/logging"
)

// Runner is a component with a context-bound run loop, like *websocket.Hub.
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService supervises a Runner.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps r under name.
func NewRunnerService(name string, r Runner) *RunnerService {
	return &RunnerService{runner: r, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer.
func (s *RunnerService) String() string {
	return s.name
}

// ShutdownService blocks until its context ends and then runs cleanup
// with a fresh context bounded by timeout.
type ShutdownService struct {
	name    string
	timeout time.Duration
	cleanup func(ctx context.Context) error
}

// NewShutdownService creates a ShutdownService. A non-positive timeout defaults to 30s.
func NewShutdownService(name string, timeout time.Duration, cleanup func(ctx context.Context) error) *ShutdownService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownService{name: name, timeout: timeout, cleanup: cleanup}
}

// Serve implements suture.Service. A cleanup error is logged; ctx.Err() is returned.
func (s *ShutdownService) Serve(ctx context.Context) error {
	<-ctx.Done()

	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	began := time.Now()
	if err := s.cleanup(cleanupCtx); err != nil {
		logging.Warn().Err(err).Str("service", s.name).Msg("Shutdown cleanup incomplete")
	} else {
		logging.Info().Str("service", s.name).Dur("duration", time.Since(began)).Msg("Shutdown cleanup complete")
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *ShutdownService) String() string {
	return s.name
}
