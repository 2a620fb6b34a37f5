// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/decoy"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
)

// Login exchanges a username and password for a JWT.
//
// The token is returned in the body and also set as an HTTP-only cookie so
// browser collectors can reuse it on the WebSocket handshake.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		logging.CtxInfo(r.Context()).
			Str("username", sanitizeLogValue(req.Username)).
			Msg("Login failed")
		respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "Invalid username or password", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Internal server error", err)
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(user.Username, user.Role)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Failed to generate authentication token", err)
		return
	}

	setAuthCookie(w, r, token, expiresAt)
	logging.CtxInfo(r.Context()).
		Str("username", user.Username).
		Str("role", user.Role).
		Msg("Login succeeded")

	respondJSON(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      models.UserInfo{Username: user.Username, Role: user.Role},
	})
}

func setAuthCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

// Me returns the caller. While the caller is flagged suspicious the
// response carries X-Decoy so the client switches to its decoy UI.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "Authentication required", nil)
		return
	}

	info := models.UserInfo{Username: claims.Username, Role: claims.Role}
	if user, found := h.users.Lookup(claims.Username); found {
		info.Role = user.Role
	}

	if h.suspicion != nil && h.suspicion.IsSuspicious(claims.Username) {
		w.Header().Set(decoy.MarkerHeader, "1")
	}
	respondJSON(w, http.StatusOK, info)
}
