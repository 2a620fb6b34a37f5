// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/authz"
	"github.com/tomtom215/decoyshield/internal/decoy"
	"github.com/tomtom215/decoyshield/internal/middleware"
	"github.com/tomtom215/decoyshield/internal/models"
)

// Router wires handlers to routes.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
	authz   *authz.Middleware
	decoy   *decoy.Middleware
	chi     *ChiMiddleware
}

// NewRouter creates a Router. chiMW may be nil for defaults.
func NewRouter(handler *Handler, authMW *auth.Middleware, authzMW *authz.Middleware, decoyMW *decoy.Middleware, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{
		handler: handler,
		auth:    authMW,
		authz:   authzMW,
		decoy:   decoyMW,
		chi:     chiMW,
	}
}

// SetupChi builds the chi router with every route.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chi.CORS())
	r.Use(APISecurityHeaders())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		models.WriteError(w, http.StatusNotFound, models.CodeNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		models.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Group(func(r chi.Router) {
		r.Use(router.chi.RateLimitHealth())
		r.Get("/health", router.handler.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Route("/api", func(r chi.Router) {
		router.setupAuthRoutes(r)
		router.setupIDSRoutes(r)
		router.setupDecoyDocRoutes(r)
	})

	return r
}

func (router *Router) setupAuthRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.With(router.chi.RateLimitLogin()).Post("/login", router.handler.Login)
		r.With(router.chi.RateLimit(), router.auth.Authenticate).Get("/me", router.handler.Me)
	})
}

func (router *Router) setupIDSRoutes(r chi.Router) {
	r.Route("/ids", func(r chi.Router) {
		r.With(router.chi.RateLimitWebSocket()).Get("/ws", router.handler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(router.chi.RateLimit())

			// Decoy-protected: flagged callers get fabricated alerts.
			r.Group(func(r chi.Router) {
				r.Use(router.decoy.Protect(decoy.ResourceAlerts))
				r.Get("/alerts", router.handler.ListAlerts)
				r.Patch("/alerts/{id}", router.handler.UpdateAlertStatus)
			})

			r.Group(func(r chi.Router) {
				r.Use(router.auth.Authenticate)
				r.With(router.authz.Authorize(authz.ObjectOwnAlerts, authz.ActionRead)).
					Get("/my-alerts", router.handler.MyAlerts)

				r.Group(func(r chi.Router) {
					r.Use(router.authz.Authorize(authz.ObjectSuspicion, authz.ActionManage))
					r.Get("/suspicious", router.handler.ListSuspicious)
					r.Delete("/suspicious/{identity}", router.handler.ClearSuspicion)
				})
			})
		})
	})
}

func (router *Router) setupDecoyDocRoutes(r chi.Router) {
	r.Route("/decoydocs", func(r chi.Router) {
		r.Use(router.chi.RateLimit())

		r.With(router.decoy.Protect(decoy.ResourceDocuments)).Get("/", router.handler.ListDocuments)
		r.With(router.decoy.Protect(decoy.ResourceDocuments), router.chi.RateLimitWrite()).
			Post("/", router.handler.CreateDocument)

		r.Route("/{id}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(router.decoy.Protect(decoy.ResourceDocument))
				r.Get("/", router.handler.GetDocument)
				r.With(router.chi.RateLimitWrite()).Put("/", router.handler.UpdateDocument)
				r.With(router.chi.RateLimitWrite()).Delete("/", router.handler.DeleteDocument)
				r.With(router.chi.RateLimitWrite()).Post("/verify", router.handler.VerifyDocument)
			})
			r.With(router.decoy.Protect(decoy.ResourceDownload)).Get("/download", router.handler.DownloadDocument)
		})
	})
}
