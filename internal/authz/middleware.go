// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package authz

import (
	"net/http"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
)

// Middleware enforces policy on routes behind auth.Middleware.Authenticate.
type Middleware struct {
	enforcer *Enforcer
}

// NewMiddleware creates a new authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// Authorize requires the caller's role to allow action on object.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok {
				models.WriteError(w, http.StatusForbidden, models.CodeForbidden, "Admin access required")
				return
			}

			allowed, err := m.enforcer.Enforce(claims.Role, object, action)
			if err != nil {
				logging.CtxErr(r.Context(), err).Msg("Authorization error")
				models.WriteError(w, http.StatusInternalServerError, models.CodeInternal, "Internal server error")
				return
			}
			if !allowed {
				logging.CtxDebug(r.Context()).
					Str("username", claims.Username).
					Str("object", object).
					Str("action", action).
					Msg("Authorization denied")
				models.WriteError(w, http.StatusForbidden, models.CodeForbidden, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
