// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/sessiond/internal/models"
)

// HealthLive reports that the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, models.LivenessResponse{
		Status:   "alive",
		Sessions: len(h.sessions.List()),
		Uptime:   time.Since(h.startTime),
	})
}
