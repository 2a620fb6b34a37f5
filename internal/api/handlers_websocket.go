// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"context"
	"net/http"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/authz"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
	ws "github.com/tomtom215/decoyshield/internal/websocket"
)

// WebSocket upgrades an authenticated collector connection.
//
// The token comes from the Authorization header, the token cookie or the
// token query parameter. A missing or invalid token is refused with 401
// before the upgrade.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	token, err := auth.ExtractToken(r)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "Authentication required", nil)
		return
	}
	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		logging.CtxDebug(r.Context()).Err(err).Msg("WebSocket token rejected")
		respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "Authentication required", nil)
		return
	}

	opts := ws.ClientOptions{
		Username: claims.Username,
		Admin:    h.receivesAlertStream(claims.Role),
		Handler:  h.sessions,
	}
	if h.config != nil {
		opts.BatchRate = h.config.Detection.BatchRate
		opts.BatchBurst = h.config.Detection.BatchBurst
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.CtxWarn(r.Context()).Err(err).Msg("WebSocket upgrade error")
		return
	}

	// The connection outlives the request; keep its log fields only.
	client := ws.NewClient(context.WithoutCancel(r.Context()), h.wsHub, conn, opts)
	h.wsHub.Register <- client
	client.Start()
}

func (h *Handler) receivesAlertStream(role string) bool {
	if h.enforcer == nil {
		return role == auth.RoleAdmin
	}
	allowed, err := h.enforcer.Enforce(role, authz.ObjectAlertStream, authz.ActionRead)
	if err != nil {
		logging.Warn().Err(err).Str("role", role).Msg("Alert stream authorization failed")
		return false
	}
	return allowed
}

// checkWebSocketOrigin validates WebSocket connection origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin; allowing it empty would bypass CORS.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.config == nil {
		return true
	}

	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
