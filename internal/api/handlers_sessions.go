// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/sessiond/internal/identity"
	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/models"
	"github.com/tomtom215/sessiond/internal/validation"
)

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// ListSessions returns a snapshot of every registered session.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.sessions.List())
}

// CreateSession makes a fresh session current for the caller's user and
// optionally starts it. Any previous session of that user is superseded.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, models.CodePayloadTooLarge, "request body too large", nil)
			return
		}
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "invalid JSON body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	userKey, err := identity.Resolve(req.UserID, req.DeviceInfo)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, err.Error(), nil)
		return
	}

	id, err := h.sessions.GetOrCreateSession(r.Context(), userKey, req.DeviceInfo)
	if err != nil {
		respondSessionError(w, r, "", err)
		return
	}
	ctx := logging.ContextWithSessionID(r.Context(), id)

	resp := models.CreateSessionResponse{SessionID: id, UserID: userKey}
	if req.Start {
		if err := h.sessions.StartSession(ctx, id); err != nil {
			respondSessionError(w, r.WithContext(ctx), id, err)
			return
		}
		resp.Started = true
	}
	respondSuccess(w, r, http.StatusCreated, resp)
}

// GetSession returns the session's snapshot.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	snap, err := h.sessions.Snapshot(id)
	if err != nil {
		respondSessionError(w, r, id, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, snap)
}

// DestroySession logs the session out. Unknown ids succeed.
func (h *Handler) DestroySession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	ctx := logging.ContextWithSessionID(r.Context(), id)
	if err := h.sessions.DestroySession(ctx, id); err != nil {
		respondSessionError(w, r, id, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]any{"session_id": id, "destroyed": true})
}

// StartSession launches the engine. Already running sessions succeed unchanged.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	ctx := logging.ContextWithSessionID(r.Context(), id)
	if err := h.sessions.StartSession(ctx, id); err != nil {
		respondSessionError(w, r, id, err)
		return
	}
	_ = h.sessions.Touch(id)

	snap, err := h.sessions.Snapshot(id)
	if err != nil {
		respondSessionError(w, r, id, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, snap)
}

// ReconnectSession replaces the session's engine. By default it returns 202
// and reconnects in the background; wait=true blocks until the outcome.
func (h *Handler) ReconnectSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.sessions.Snapshot(id); err != nil {
		respondSessionError(w, r, id, err)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		h.sessions.ReconnectSession(id)
		respondSuccess(w, r, http.StatusAccepted, map[string]any{"session_id": id, "reconnecting": true})
		return
	}

	ctx := logging.ContextWithSessionID(r.Context(), id)
	if err := h.sessions.Reconnect(ctx, id); err != nil {
		respondSessionError(w, r, id, err)
		return
	}
	snap, err := h.sessions.Snapshot(id)
	if err != nil {
		respondSessionError(w, r, id, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, snap)
}

// SessionHealth runs the fast liveness probe.
func (h *Handler) SessionHealth(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.sessions.Snapshot(id); err != nil {
		respondSessionError(w, r, id, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, models.SessionHealthResponse{
		SessionID: id,
		Healthy:   h.sessions.IsSessionHealthy(r.Context(), id),
	})
}

// SessionEvents upgrades to a websocket that streams the session's events.
func (h *Handler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.sessions.Snapshot(id); err != nil {
		respondSessionError(w, r, id, err)
		return
	}
	if h.subscribers == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.CodeServiceUnavailable, "event streaming unavailable", nil)
		return
	}
	_ = h.sessions.Touch(id)

	// The upgrader has already answered the client when this fails.
	if err := h.subscribers.ServeWS(w, r, id); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Str("session_id", id).Msg("Websocket subscription failed")
	}
}
