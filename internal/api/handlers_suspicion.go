// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
)

// ClearedSuspicion is the body of a suspicion clear.
type ClearedSuspicion struct {
	Identity string `json:"identity"`
	Cleared  bool   `json:"cleared"`
}

// ListSuspicious returns the live suspicion entries.
func (h *Handler) ListSuspicious(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.suspicion.Snapshot())
}

// ClearSuspicion removes an identity from the registry. Clearing an
// identity that is not tracked succeeds.
func (h *Handler) ClearSuspicion(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(chi.URLParam(r, "identity"))
	if identity == "" {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "identity is required", nil)
		return
	}

	wasSuspicious := h.suspicion.IsSuspicious(identity)
	h.suspicion.ClearSuspicion(identity)

	event := logging.CtxInfo(r.Context()).
		Str("identity", sanitizeLogValue(identity)).
		Bool("was_suspicious", wasSuspicious)
	if claims, ok := auth.GetClaims(r.Context()); ok {
		event = event.Str("cleared_by", claims.Username)
	}
	event.Msg("Suspicion cleared")

	respondJSON(w, http.StatusOK, ClearedSuspicion{Identity: identity, Cleared: wasSuspicious})
}
