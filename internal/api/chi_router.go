// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/sessiond/internal/middleware"
)

// NewRouter builds the chi router for h.
func NewRouter(h *Handler, mw ChiMiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(middleware.AccessLog)
	r.Use(middleware.Prometheus)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health/live", h.HealthLive)

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())
			h.sessionRoutes(r)
			h.mediaRoutes(r)
		})
	})

	return r
}

func (h *Handler) sessionRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Post("/", h.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DestroySession)
			r.Post("/start", h.StartSession)
			r.Post("/reconnect", h.ReconnectSession)
			r.Get("/health", h.SessionHealth)
			r.Get("/ws", h.SessionEvents)
		})
	})
}

func (h *Handler) mediaRoutes(r chi.Router) {
	r.Route("/media", func(r chi.Router) {
		r.Post("/convert", h.ConvertMedia)
		r.Get("/formats", h.MediaFormats)
	})
}
