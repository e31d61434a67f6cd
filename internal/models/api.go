// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package models

import "time"

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error codes returned in APIError.Code.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionSuperseded  = "SESSION_SUPERSEDED"
	CodeReconnectActive    = "RECONNECT_IN_PROGRESS"
	CodeEngineUnavailable  = "TRANSCODE_UNAVAILABLE"
	CodeEngineStartFailed  = "ENGINE_START_FAILED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateSessionRequest asks for the current session of a user.
// UserID wins over DeviceInfo when both are present.
type CreateSessionRequest struct {
	UserID     string         `json:"user_id" validate:"omitempty,userkey"`
	DeviceInfo map[string]any `json:"device_info" validate:"required_without=UserID"`

	// Start launches the engine right after creation.
	Start bool `json:"start"`
}

// CreateSessionResponse identifies the session now current for the user.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Started   bool   `json:"started"`
}

// SessionHealthResponse reports a fast liveness probe of one session.
type SessionHealthResponse struct {
	SessionID string `json:"session_id"`
	Healthy   bool   `json:"healthy"`
}

// ConvertRequest holds the query and header inputs of a media conversion.
type ConvertRequest struct {
	ContentType string `validate:"required,mediatype"`
	Key         string `validate:"omitempty,max=256"`
}

// FormatsResponse lists the formats a piece of media can be delivered in.
type FormatsResponse struct {
	ContentType     string   `json:"content_type"`
	Formats         []string `json:"formats"`
	EngineAvailable bool     `json:"engine_available"`
}

// LivenessResponse is returned by the process liveness endpoint.
type LivenessResponse struct {
	Status   string        `json:"status"`
	Sessions int           `json:"sessions"`
	Uptime   time.Duration `json:"uptime_ns"`
}
