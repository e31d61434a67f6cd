// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

// Package relay publishes session state changes to external subscribers.
//
// The session core only ever calls Publisher.Publish. Delivery is the
// implementation's concern: the websocket hub pushes to connected clients,
// WatermillPublisher forwards to NATS, and Fanout combines them.
package relay

import (
	"sync"
	"time"
)

// Publisher receives session events keyed by session id.
// Implementations must not block the caller for long and never report
// errors back; failures are logged by the implementation.
type Publisher interface {
	Publish(sessionID, event string, payload any)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(string, string, any) {}

// Fanout publishes each event to every wrapped publisher in order.
type Fanout struct {
	publishers []Publisher
}

// NewFanout creates a Fanout, skipping nil publishers.
func NewFanout(publishers ...Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Publish implements Publisher.
func (f *Fanout) Publish(sessionID, event string, payload any) {
	for _, p := range f.publishers {
		p.Publish(sessionID, event, payload)
	}
}

// Envelope is the wire form of a published event.
type Envelope struct {
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope stamps an event with the current time.
func NewEnvelope(sessionID, event string, payload any) Envelope {
	return Envelope{
		SessionID: sessionID,
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Recorder is an in-memory Publisher that keeps every event, for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
	notify chan struct{}
}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Publish implements Publisher.
func (r *Recorder) Publish(sessionID, event string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, NewEnvelope(sessionID, event, payload))
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the event names recorded for sessionID, in order.
func (r *Recorder) Names(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.SessionID == sessionID {
			out = append(out, e.Event)
		}
	}
	return out
}

// Find returns the first recorded event matching sessionID and name.
func (r *Recorder) Find(sessionID, event string) (Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.SessionID == sessionID && e.Event == event {
			return e, true
		}
	}
	return Envelope{}, false
}

// WaitFor blocks until an event matching sessionID and name is recorded or timeout elapses.
func (r *Recorder) WaitFor(sessionID, event string, timeout time.Duration) (Envelope, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if e, ok := r.Find(sessionID, event); ok {
			return e, true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return r.Find(sessionID, event)
		}
	}
}
