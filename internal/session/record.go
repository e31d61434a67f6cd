// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package session

import (
	"errors"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/sessiond/internal/engine"
)

// State is a session lifecycle state.
type State string

const (
	StateCreated       State = "created"
	StateInitializing  State = "initializing"
	StateAuthenticated State = "authenticated"
	StateReady         State = "ready"
	StateDisconnected  State = "disconnected"
	StateDestroyed     State = "destroyed"
)

// HasEngine reports whether a record in state s owns an engine.
func (s State) HasEngine() bool {
	return s == StateInitializing || s == StateAuthenticated || s == StateReady
}

var (
	errDestroyed      = errors.New("session destroyed")
	errEngineAttached = errors.New("engine already attached")
)

// Record is one session. Lifecycle fields are guarded by mu; activity and
// the reconnect gate are atomics written from several goroutines.
type Record struct {
	ID         string
	UserID     string
	CreatedAt  time.Time
	deviceInfo map[string]any

	mu            sync.Mutex
	state         State
	eng           engine.Engine
	generation    uint64
	authenticated bool
	ready         bool
	qr            string
	phone         string
	lastError     string
	startedAt     time.Time
	readyAt       time.Time
	halted        string

	lastActivity atomic.Int64
	reconnecting atomic.Bool
}

func newRecord(id, userID string, deviceInfo map[string]any, now time.Time) *Record {
	r := &Record{
		ID:         id,
		UserID:     userID,
		CreatedAt:  now,
		deviceInfo: maps.Clone(deviceInfo),
		state:      StateCreated,
	}
	r.lastActivity.Store(now.UnixNano())
	return r
}

// Touch records activity at now.
func (r *Record) Touch(now time.Time) {
	r.lastActivity.Store(now.UnixNano())
}

// LastActivity returns the time of the most recent activity.
func (r *Record) LastActivity() time.Time {
	return time.Unix(0, r.lastActivity.Load())
}

// Reconnecting reports whether a reconnect currently holds the gate.
func (r *Record) Reconnecting() bool {
	return r.reconnecting.Load()
}

// State returns the current lifecycle state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// DeviceInfo returns a copy of the device info supplied at creation.
func (r *Record) DeviceInfo() map[string]any {
	return maps.Clone(r.deviceInfo)
}

// engineHandle returns the attached engine and its generation.
func (r *Record) engineHandle() (engine.Engine, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eng, r.generation
}

// attach installs eng if no engine is attached. The record moves to
// initializing and the start and ready times restart with the new engine.
func (r *Record) attach(eng engine.Engine, now time.Time) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateDestroyed {
		return 0, errDestroyed
	}
	if r.eng != nil {
		return 0, errEngineAttached
	}
	r.generation++
	r.eng = eng
	r.state = StateInitializing
	r.lastError = ""
	r.halted = ""
	r.startedAt = now
	r.readyAt = time.Time{}
	return r.generation, nil
}

// detach releases the engine of generation gen and moves the record to state to.
// A non-empty halt clears authentication and keeps the health monitor from
// restarting the session until it is started again explicitly.
// It returns nil when gen is no longer current.
func (r *Record) detach(gen uint64, to State, halt, reason string) engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen || r.eng == nil {
		return nil
	}
	eng := r.eng
	r.eng = nil
	r.generation++
	r.state = to
	r.ready = false
	r.qr = ""
	if halt != "" {
		r.authenticated = false
		r.halted = halt
	}
	if reason != "" {
		r.lastError = reason
	}
	return eng
}

// resetForReconnect clears ready, authentication, QR, and the engine.
func (r *Record) resetForReconnect() (engine.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateDestroyed {
		return nil, errDestroyed
	}
	eng := r.eng
	r.eng = nil
	r.generation++
	r.state = StateCreated
	r.ready = false
	r.authenticated = false
	r.readyAt = time.Time{}
	r.qr = ""
	return eng, nil
}

// markDestroyed moves the record to its terminal state and returns the
// released engine. ok is false if the record was already destroyed.
func (r *Record) markDestroyed() (eng engine.Engine, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateDestroyed {
		return nil, false
	}
	eng = r.eng
	r.eng = nil
	r.generation++
	r.state = StateDestroyed
	r.ready = false
	r.qr = ""
	return eng, true
}

// Snapshot is a point-in-time copy of a record.
type Snapshot struct {
	ID              string         `json:"session_id"`
	UserID          string         `json:"user_id"`
	State           State          `json:"state"`
	IsAuthenticated bool           `json:"is_authenticated"`
	IsReady         bool           `json:"is_ready"`
	Reconnecting    bool           `json:"reconnecting"`
	HasEngine       bool           `json:"has_engine"`
	QR              string         `json:"qr,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	Halted          string         `json:"halted,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	ReadyAt         *time.Time     `json:"ready_at,omitempty"`
	LastActivityAt  time.Time      `json:"last_activity_at"`
	DeviceInfo      map[string]any `json:"device_info,omitempty"`
}

// Snapshot returns a copy of the record's observable state.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	s := Snapshot{
		ID:              r.ID,
		UserID:          r.UserID,
		State:           r.state,
		IsAuthenticated: r.authenticated,
		IsReady:         r.ready,
		HasEngine:       r.eng != nil,
		QR:              r.qr,
		Phone:           r.phone,
		LastError:       r.lastError,
		Halted:          r.halted,
		CreatedAt:       r.CreatedAt,
		StartedAt:       timePtr(r.startedAt),
		ReadyAt:         timePtr(r.readyAt),
	}
	r.mu.Unlock()

	s.Reconnecting = r.reconnecting.Load()
	s.LastActivityAt = r.LastActivity()
	s.DeviceInfo = r.DeviceInfo()
	return s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
