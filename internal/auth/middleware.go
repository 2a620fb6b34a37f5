// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
)

type contextKey string

// ClaimsContextKey holds the validated *Claims.
const ClaimsContextKey contextKey = "claims"

// UsernameHeader is the unauthenticated identity hint honoured by Identify.
const UsernameHeader = "X-Username"

// Middleware authenticates requests with a JWTManager.
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

// Identity is the result of tolerant identification.
type Identity struct {
	Username string
	Role     string
	// Authenticated is false when no valid token was presented and
	// Username came from the X-Username header.
	Authenticated bool
}

// Authenticate rejects requests without a valid token with 401 and stores
// the claims in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFromRequest(r)
		if err != nil {
			logging.CtxDebug(r.Context()).Err(err).Msg("Authentication failed")
			models.WriteError(w, http.StatusUnauthorized, models.CodeUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Identify never fails. A valid token yields its claims; otherwise the
// X-Username header is reported with Authenticated false.
func (m *Middleware) Identify(r *http.Request) Identity {
	if claims, ok := GetClaims(r.Context()); ok {
		return Identity{Username: claims.Username, Role: claims.Role, Authenticated: true}
	}
	claims, err := m.claimsFromRequest(r)
	if err == nil {
		return Identity{Username: claims.Username, Role: claims.Role, Authenticated: true}
	}
	if !errors.Is(err, ErrNoCredentials) {
		logging.CtxDebug(r.Context()).Err(err).Msg("Tampered or expired token on protected route")
	}
	return Identity{Username: strings.TrimSpace(r.Header.Get(UsernameHeader))}
}

// ValidateToken exposes the manager for transports that authenticate
// outside HTTP middleware.
func (m *Middleware) ValidateToken(token string) (*Claims, error) {
	return m.jwtManager.ValidateToken(token)
}

func (m *Middleware) claimsFromRequest(r *http.Request) (*Claims, error) {
	token, err := ExtractToken(r)
	if err != nil {
		return nil, err
	}
	return m.jwtManager.ValidateToken(token)
}

// ExtractToken reads a bearer token from the Authorization header, the
// "token" cookie or the "token" query parameter, in that order.
func ExtractToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", ErrInvalidToken
		}
		return token, nil
	}
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrNoCredentials
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// GetClaims returns the claims stored by Authenticate.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}
