// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/metrics"
)

// TeardownFunc releases everything a destroyed record owns.
type TeardownFunc func(ctx context.Context, rec *Record, reason Reason) error

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	// Teardown runs once per removed record. Nil only marks records destroyed.
	Teardown TeardownFunc

	// Now overrides the clock.
	Now func() time.Time
}

// Registry indexes records by session id and user key.
// Both maps change together under one lock, so readers never observe a user
// mapped to a missing record or two current records for one user.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]*Record
	byUser     map[string]string
	tombstones map[string]time.Time

	teardown TeardownFunc
	now      func() time.Time
	logger   zerolog.Logger

	pending sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		byID:       make(map[string]*Record),
		byUser:     make(map[string]string),
		tombstones: make(map[string]time.Time),
		teardown:   opts.Teardown,
		now:        opts.Now,
		logger:     logging.WithComponent("registry"),
	}
}

// GetOrCreate registers a new record for userKey and returns its id.
// A previous record for the same user is unmapped before this returns and
// torn down in the background.
func (r *Registry) GetOrCreate(_ context.Context, userKey string, deviceInfo map[string]any) (*Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("mint session id: %w", err)
	}
	now := r.now()
	rec := newRecord(id.String(), userKey, deviceInfo, now)

	r.mu.Lock()
	var previous *Record
	if oldID, ok := r.byUser[userKey]; ok {
		previous = r.byID[oldID]
		delete(r.byID, oldID)
		r.tombstones[oldID] = now
	}
	r.byID[rec.ID] = rec
	r.byUser[userKey] = rec.ID
	r.mu.Unlock()

	if previous != nil {
		r.logger.Info().
			Str("session_id", previous.ID).
			Str("superseded_by", rec.ID).
			Str("user_id", userKey).
			Msg("Superseding existing session")
		r.pending.Add(1)
		go func() {
			defer r.pending.Done()
			r.runTeardown(context.Background(), previous, ReasonSuperseded)
		}()
	}
	return rec, nil
}

// Destroy removes id from both indexes and tears it down.
// Unknown and already destroyed ids are a no-op.
func (r *Registry) Destroy(ctx context.Context, id string, reason Reason) error {
	r.mu.Lock()
	rec, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if r.byUser[rec.UserID] == id {
			delete(r.byUser, rec.UserID)
		}
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.runTeardown(ctx, rec, reason)
	return nil
}

// DestroyAll tears down every registered record.
func (r *Registry) DestroyAll(ctx context.Context, reason Reason) int {
	r.mu.Lock()
	recs := make([]*Record, 0, len(r.byID))
	for _, rec := range r.byID {
		recs = append(recs, rec)
	}
	r.byID = make(map[string]*Record)
	r.byUser = make(map[string]string)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, rec := range recs {
		wg.Add(1)
		go func(rec *Record) {
			defer wg.Done()
			r.runTeardown(ctx, rec, reason)
		}(rec)
	}
	wg.Wait()
	return len(recs)
}

func (r *Registry) runTeardown(ctx context.Context, rec *Record, reason Reason) {
	if r.teardown == nil {
		rec.markDestroyed()
		return
	}
	if err := r.teardown(ctx, rec, reason); err != nil {
		metrics.RecordSessionTeardownFailure(string(reason))
		r.logger.Warn().Err(err).Str("session_id", rec.ID).Str("reason", string(reason)).Msg("Session teardown incomplete")
	}
}

// Wait blocks until all background teardowns have finished.
func (r *Registry) Wait() {
	r.pending.Wait()
}

// Get returns the record for id.
func (r *Registry) Get(id string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	return rec, ok
}

// Resolve returns the record for id or a not-found/superseded error.
func (r *Registry) Resolve(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.byID[id]; ok {
		return rec, nil
	}
	if _, ok := r.tombstones[id]; ok {
		return nil, ErrSessionSuperseded
	}
	return nil, ErrSessionNotFound
}

// IsUserSessionCurrent reports whether id is still the registered session for its user.
func (r *Registry) IsUserSessionCurrent(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	return ok && r.byUser[rec.UserID] == id
}

// CurrentFor returns the current session id for userKey.
func (r *Registry) CurrentFor(userKey string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userKey]
	return id, ok
}

// List returns all records ordered by creation time.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	out := make([]*Record, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of registered records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// PruneTombstones forgets superseded ids recorded before cutoff.
// Afterwards those ids resolve as not found.
func (r *Registry) PruneTombstones(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, at := range r.tombstones {
		if at.Before(cutoff) {
			delete(r.tombstones, id)
			n++
		}
	}
	return n
}
