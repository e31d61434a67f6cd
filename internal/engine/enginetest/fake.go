// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

// Package enginetest provides scriptable engine fakes for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/sessiond/internal/engine"
)

// ErrClosed is returned by Emit after the fake was destroyed.
var ErrClosed = errors.New("fake engine closed")

// Engine is a fake engine.Engine. Zero values give an engine that starts
// immediately and reports CONNECTED.
type Engine struct {
	SessionID string
	Opts      engine.Options

	mu         sync.Mutex
	startErr   error
	startBlock chan struct{}
	state      string
	stateErr   error
	stateBlock bool
	closed     bool
	events     chan engine.Event

	starts   atomic.Int32
	destroys atomic.Int32
	probes   atomic.Int32
}

// NewEngine creates a fake engine.
func NewEngine(sessionID string, opts engine.Options) *Engine {
	return &Engine{
		SessionID: sessionID,
		Opts:      opts,
		state:     engine.LivenessConnected,
		events:    make(chan engine.Event, 64),
	}
}

// FailStart makes Start return err.
func (e *Engine) FailStart(err error) *Engine {
	e.mu.Lock()
	e.startErr = err
	e.mu.Unlock()
	return e
}

// BlockStart makes Start wait until Release or context expiry.
func (e *Engine) BlockStart() *Engine {
	e.mu.Lock()
	e.startBlock = make(chan struct{})
	e.mu.Unlock()
	return e
}

// Release unblocks a Start held by BlockStart.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startBlock != nil {
		close(e.startBlock)
		e.startBlock = nil
	}
}

// SetLiveness sets the value and error LivenessState returns.
func (e *Engine) SetLiveness(state string, err error) {
	e.mu.Lock()
	e.state = state
	e.stateErr = err
	e.mu.Unlock()
}

// HangLiveness makes LivenessState block until its context expires.
func (e *Engine) HangLiveness() {
	e.mu.Lock()
	e.stateBlock = true
	e.mu.Unlock()
}

// Start implements engine.Engine.
func (e *Engine) Start(ctx context.Context) error {
	e.starts.Add(1)
	e.mu.Lock()
	err := e.startErr
	block := e.startBlock
	e.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Destroy implements engine.Engine. It closes the event stream.
func (e *Engine) Destroy(_ context.Context) error {
	e.destroys.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
	return nil
}

// LivenessState implements engine.Engine.
func (e *Engine) LivenessState(ctx context.Context) (string, error) {
	e.probes.Add(1)
	e.mu.Lock()
	state, err, block := e.state, e.stateErr, e.stateBlock
	e.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return state, err
}

// Events implements engine.Engine.
func (e *Engine) Events() <-chan engine.Event {
	return e.events
}

// Emit delivers an event on the stream.
func (e *Engine) Emit(ev engine.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.events <- ev
	return nil
}

// Crash closes the event stream as if the engine died.
func (e *Engine) Crash() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}

// Starts returns the number of Start calls.
func (e *Engine) Starts() int { return int(e.starts.Load()) }

// Destroys returns the number of Destroy calls.
func (e *Engine) Destroys() int { return int(e.destroys.Load()) }

// Probes returns the number of LivenessState calls.
func (e *Engine) Probes() int { return int(e.probes.Load()) }

// Destroyed reports whether Destroy or Crash closed the stream.
func (e *Engine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Factory is a fake engine.Factory that records every engine it creates.
type Factory struct {
	// Prepare, when set, configures each engine before New returns it.
	Prepare func(e *Engine)

	mu      sync.Mutex
	newErr  error
	engines []*Engine
}

// NewFactory creates a fake factory.
func NewFactory() *Factory {
	return &Factory{}
}

// FailNew makes New return err.
func (f *Factory) FailNew(err error) {
	f.mu.Lock()
	f.newErr = err
	f.mu.Unlock()
}

// New implements engine.Factory.
func (f *Factory) New(sessionID string, opts engine.Options) (engine.Engine, error) {
	f.mu.Lock()
	if f.newErr != nil {
		err := f.newErr
		f.mu.Unlock()
		return nil, err
	}
	prepare := f.Prepare
	e := NewEngine(sessionID, opts)
	f.engines = append(f.engines, e)
	f.mu.Unlock()

	if prepare != nil {
		prepare(e)
	}
	return e, nil
}

// Engines returns every engine created so far, oldest first.
func (f *Factory) Engines() []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Engine, len(f.engines))
	copy(out, f.engines)
	return out
}

// Count returns the number of engines created.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

// Last returns the most recently created engine, or nil.
func (f *Factory) Last() *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

// ForSession returns the engines created for sessionID, oldest first.
func (f *Factory) ForSession(sessionID string) []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Engine
	for _, e := range f.engines {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Factory = (*Factory)(nil)
)
