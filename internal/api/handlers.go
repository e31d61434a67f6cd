// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/sessiond/internal/session"
	"github.com/tomtom215/sessiond/internal/transcode"
)

// SessionService is the session manager as seen by the handlers.
type SessionService interface {
	GetOrCreateSession(ctx context.Context, userKey string, deviceInfo map[string]any) (string, error)
	StartSession(ctx context.Context, id string) error
	DestroySession(ctx context.Context, id string) error
	IsSessionHealthy(ctx context.Context, id string) bool
	Reconnect(ctx context.Context, id string) error
	ReconnectSession(id string)
	Snapshot(id string) (session.Snapshot, error)
	Touch(id string) error
	List() []session.Snapshot
}

// MediaService converts voice notes.
type MediaService interface {
	Convert(ctx context.Context, buf []byte, contentType, key string) (*transcode.Artifact, error)
	SupportedFormats(contentType string) []string
	Available() bool
}

// Subscribers upgrades a request to a websocket bound to one session.
type Subscribers interface {
	ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) error
}

// Handler serves the API endpoints.
type Handler struct {
	sessions       SessionService
	media          MediaService
	subscribers    Subscribers
	maxUploadBytes int64
	startTime      time.Time
}

// NewHandler creates a Handler. maxUploadBytes bounds conversion bodies;
// non-positive values default to 32MB.
func NewHandler(sessions SessionService, media MediaService, subscribers Subscribers, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &Handler{
		sessions:       sessions,
		media:          media,
		subscribers:    subscribers,
		maxUploadBytes: maxUploadBytes,
		startTime:      time.Now(),
	}
}
