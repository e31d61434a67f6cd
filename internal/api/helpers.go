// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sessiond/internal/engine"
	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/models"
	"github.com/tomtom215/sessiond/internal/session"
	"github.com/tomtom215/sessiond/internal/validation"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// sanitizeLogValue escapes control characters so client input cannot forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func metadata(r *http.Request) models.Metadata {
	return models.Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
}

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	respondJSON(w, status, &models.APIResponse{
		Status:   models.StatusSuccess,
		Data:     data,
		Metadata: metadata(r),
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	respondJSON(w, status, &models.APIResponse{
		Status:   models.StatusError,
		Metadata: metadata(r),
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondValidation writes a 400 from a validator failure.
func respondValidation(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
}

// respondSessionError maps manager errors to status codes. Unknown errors
// are reported as engine failures.
func respondSessionError(w http.ResponseWriter, r *http.Request, id string, err error) {
	status, code := http.StatusBadGateway, models.CodeEngineStartFailed
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status, code = http.StatusNotFound, models.CodeSessionNotFound
	case errors.Is(err, session.ErrSessionSuperseded):
		status, code = http.StatusConflict, models.CodeSessionSuperseded
	case errors.Is(err, session.ErrReconnectInProgress):
		status, code = http.StatusConflict, models.CodeReconnectActive
	case errors.Is(err, session.ErrManagerClosed), errors.Is(err, engine.ErrNotConfigured):
		status, code = http.StatusServiceUnavailable, models.CodeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	log := logging.Ctx(r.Context())
	event := log.Debug()
	if status >= http.StatusInternalServerError {
		event = log.Warn()
	}
	event.Err(err).Str("session_id", sanitizeLogValue(id)).Int("status", status).Msg("Session request failed")

	respondError(w, r, status, code, err.Error(), map[string]any{"session_id": id})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(body, v)
}
