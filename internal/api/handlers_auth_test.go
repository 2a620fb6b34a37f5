// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/decoy"
	"github.com/tomtom215/decoyshield/internal/models"
)

func TestLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
		wantRole string
	}{
		{"admin", `{"username":"root","password":"root-password-1"}`, http.StatusOK, "", auth.RoleAdmin},
		{"user", `{"username":"alice","password":"alice-password-1"}`, http.StatusOK, "", auth.RoleUser},
		{"wrong password", `{"username":"alice","password":"nope"}`, http.StatusUnauthorized, models.CodeUnauthorized, ""},
		{"unknown user", `{"username":"eve","password":"alice-password-1"}`, http.StatusUnauthorized, models.CodeUnauthorized, ""},
		{"blank username", `{"username":"  ","password":"x"}`, http.StatusBadRequest, models.CodeValidation, ""},
		{"missing password", `{"username":"alice"}`, http.StatusBadRequest, models.CodeValidation, ""},
		{"malformed", `{"username":`, http.StatusBadRequest, models.CodeValidation, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := env.do(http.MethodPost, "/api/auth/login", tt.body, "")

			if tt.wantErr != "" {
				assertErrorCode(t, rec, tt.wantCode, tt.wantErr)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body=%s", rec.Code, tt.wantCode, rec.Body.String())
			}

			resp := decodeEnvelope[models.LoginResponse](t, rec).Data
			if resp.User.Role != tt.wantRole {
				t.Errorf("role = %q, want %q", resp.User.Role, tt.wantRole)
			}
			claims, err := env.jwt.ValidateToken(resp.Token)
			if err != nil {
				t.Fatalf("issued token invalid: %v", err)
			}
			if claims.Username != resp.User.Username || claims.Role != tt.wantRole {
				t.Errorf("claims = %+v", claims)
			}
			if cookie := rec.Header().Get("Set-Cookie"); !strings.Contains(cookie, "token="+resp.Token) || !strings.Contains(cookie, "HttpOnly") {
				t.Errorf("Set-Cookie = %q", cookie)
			}
		})
	}
}

func TestMe(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	t.Run("requires token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/auth/me", "", "")
		assertErrorCode(t, rec, http.StatusUnauthorized, models.CodeUnauthorized)
	})

	t.Run("tampered token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/auth/me", "", env.userToken(t)+"x")
		assertErrorCode(t, rec, http.StatusUnauthorized, models.CodeUnauthorized)
	})

	t.Run("not suspicious", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/auth/me", "", env.userToken(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get(decoy.MarkerHeader) != "" {
			t.Error("X-Decoy set for a clean identity")
		}
		info := decodeEnvelope[models.UserInfo](t, rec).Data
		if info.Username != plainUser || info.Role != auth.RoleUser {
			t.Errorf("me = %+v", info)
		}
	})

	t.Run("suspicious", func(t *testing.T) {
		env.suspicion.MarkSuspicious(plainUser, 0)
		defer env.suspicion.ClearSuspicion(plainUser)

		rec := env.do(http.MethodGet, "/api/auth/me", "", env.userToken(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get(decoy.MarkerHeader) != "1" {
			t.Error("X-Decoy missing for a suspicious identity")
		}
	})
}
