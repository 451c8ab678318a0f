// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package api provides HTTP routing using the Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the ops HTTP surface.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware

	// Dead-letter inspection, registered when a store is configured.
	dlqHandlers *DeadLetterHandlers
}

// NewRouter creates a router over the handler set. A nil middleware
// factory falls back to the secure defaults (no CORS origins, 100/min
// per-client rate limit).
func NewRouter(handler *Handler, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}

	return &Router{
		handler:       handler,
		chiMiddleware: chiMw,
	}
}

// ConfigureDeadLetters sets up the dead-letter handlers. Routes are only
// registered when this has been called before Setup.
func (router *Router) ConfigureDeadLetters(handlers *DeadLetterHandlers) {
	router.dlqHandlers = handlers
}

// Setup configures all HTTP routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())      // X-Request-ID header plus logging context
	r.Use(RequestLogging())            // Completion log line per request
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Health Probes
	// ========================
	// Permissive rate limiting: monitoring systems poll these.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/healthz", router.handler.Healthz)
		r.Get("/readyz", router.handler.Readyz)
	})

	// ========================
	// Ops API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())
		r.Use(router.chiMiddleware.RateLimit())

		r.Get("/stats", router.handler.Stats)

		r.Route("/tutors/{entityKey}", func(r chi.Router) {
			r.Get("/metrics", router.handler.TutorMetrics)
			r.Get("/metrics/history", router.handler.TutorMetricsHistory)
		})

		// Ingress gets its own, stricter limit on top of the default.
		r.With(router.chiMiddleware.RateLimitIngress()).
			Post("/events", router.handler.PublishEvent)

		if router.dlqHandlers != nil {
			r.Route("/deadletters", func(r chi.Router) {
				r.Get("/", router.dlqHandlers.List)
				r.Get("/stats", router.dlqHandlers.Stats)
				r.Get("/{id}", router.dlqHandlers.Get)
				r.Delete("/{id}", router.dlqHandlers.Delete)
			})
		}
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
