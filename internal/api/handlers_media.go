// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/tomtom215/sessiond/internal/logging"
	"github.com/tomtom215/sessiond/internal/models"
	"github.com/tomtom215/sessiond/internal/transcode"
	"github.com/tomtom215/sessiond/internal/validation"
)

// Response headers describing a media conversion.
const (
	HeaderTranscodeFallback = "X-Transcode-Fallback"
	HeaderTranscodeFormat   = "X-Transcode-Format"
	HeaderTranscodeCache    = "X-Transcode-Cache"
)

// ConvertMedia converts the request body to Ogg/Opus when its content type
// calls for it and returns the resulting bytes.
func (h *Handler) ConvertMedia(w http.ResponseWriter, r *http.Request) {
	req := models.ConvertRequest{
		ContentType: r.Header.Get("Content-Type"),
		Key:         r.URL.Query().Get("key"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, models.CodePayloadTooLarge,
				"media exceeds "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes", nil)
			return
		}
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "failed to read body", nil)
		return
	}

	artifact, err := h.media.Convert(r.Context(), body, req.ContentType, req.Key)
	switch {
	case err == nil:
		writeArtifact(w, artifact, false)
	case errors.Is(err, transcode.ErrEmptyInput):
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, err.Error(), nil)
	case errors.Is(err, transcode.ErrEngineUnavailable):
		respondError(w, r, http.StatusUnprocessableEntity, models.CodeEngineUnavailable, err.Error(),
			map[string]any{"formats": h.media.SupportedFormats(req.ContentType)})
	default:
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("content_type", sanitizeLogValue(req.ContentType)).
			Msg("Conversion failed, returning original media")
		writeArtifact(w, &transcode.Artifact{
			Data:   body,
			MIME:   transcode.NormalizeMIME(req.ContentType),
			Format: transcode.FormatOriginal,
		}, true)
	}
}

func writeArtifact(w http.ResponseWriter, a *transcode.Artifact, fallback bool) {
	h := w.Header()
	h.Set("Content-Type", a.MIME)
	h.Set("Content-Length", strconv.Itoa(len(a.Data)))
	h.Set(HeaderTranscodeFormat, a.Format)
	if a.Converted {
		if a.CacheHit {
			h.Set(HeaderTranscodeCache, "hit")
		} else {
			h.Set(HeaderTranscodeCache, "miss")
		}
	}
	if fallback {
		h.Set(HeaderTranscodeFallback, "true")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write media response")
	}
}

// MediaFormats lists the formats available for the content_type query parameter.
func (h *Handler) MediaFormats(w http.ResponseWriter, r *http.Request) {
	req := models.ConvertRequest{ContentType: r.URL.Query().Get("content_type")}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	respondSuccess(w, r, http.StatusOK, models.FormatsResponse{
		ContentType:     transcode.NormalizeMIME(req.ContentType),
		Formats:         h.media.SupportedFormats(req.ContentType),
		EngineAvailable: h.media.Available(),
	})
}
