// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package decoy

import (
	"net/http"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
	"github.com/tomtom215/decoyshield/internal/models"
)

// Header names used by the decoy layer.
const (
	MarkerHeader     = "X-Decoy"
	ForceDecoyHeader = "X-Force-Decoy"
)

// Identifier resolves the caller without rejecting the request.
type Identifier interface {
	Identify(r *http.Request) auth.Identity
}

// Middleware routes protected requests to the real handler, the decoy
// provider or a denial.
type Middleware struct {
	policy     *Policy
	identifier Identifier
	provider   *Provider
}

// NewMiddleware creates the decoy middleware.
func NewMiddleware(policy *Policy, identifier Identifier, provider *Provider) *Middleware {
	return &Middleware{policy: policy, identifier: identifier, provider: provider}
}

// Protect guards a route serving resource.
func (m *Middleware) Protect(resource Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := m.identifier.Identify(r)
			flags := Overrides{
				ForceDecoy:                r.Header.Get(ForceDecoyHeader) == "1",
				UnauthenticatedOrTampered: !id.Authenticated,
			}

			decision := m.policy.DecideFor(resource, id.Username, id.Role, flags)
			metrics.RecordDecoyDecision(decision.String(), string(resource))
			logging.CtxDebug(r.Context()).
				Str("decision", decision.String()).
				Str("resource", string(resource)).
				Str("username", id.Username).
				Bool("authenticated", id.Authenticated).
				Bool("force_decoy", flags.ForceDecoy).
				Msg("Protected route decision")

			switch decision {
			case Real:
				ctx := r.Context()
				if _, ok := auth.GetClaims(ctx); !ok {
					ctx = auth.WithClaims(ctx, &auth.Claims{Username: id.Username, Role: id.Role})
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			case Decoy:
				w.Header().Set(MarkerHeader, "1")
				m.provider.Serve(w, r, resource)
			default:
				models.WriteError(w, http.StatusForbidden, models.CodeForbidden, "Admin access required")
			}
		})
	}
}
