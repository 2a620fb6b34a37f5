// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package models

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"notblank,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// UserInfo describes the authenticated caller.
type UserInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// CreateDocumentRequest is the body of POST /api/decoydocs.
type CreateDocumentRequest struct {
	Title    string `json:"title" validate:"notblank,max=200"`
	Template string `json:"template" validate:"omitempty,doctemplate"`
}

// UpdateDocumentRequest is the body of PUT /api/decoydocs/{id}.
type UpdateDocumentRequest struct {
	Title  *string `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=generated deployed archived"`
}

// AlertStatusRequest is the body of PATCH /api/ids/alerts/{id}.
type AlertStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=detected investigating resolved"`
}

// DefaultAlertLimit is the page size of GET /api/ids/alerts.
const DefaultAlertLimit = 50

// ParseAlertListQuery reads limit, offset and status from q. Absent values
// take their defaults. The result still needs validation.
func ParseAlertListQuery(q url.Values) (AlertListRequest, error) {
	limit, err := intParam(q, "limit", DefaultAlertLimit)
	if err != nil {
		return AlertListRequest{}, err
	}
	offset, err := intParam(q, "offset", 0)
	if err != nil {
		return AlertListRequest{}, err
	}
	return AlertListRequest{Limit: limit, Offset: offset, Status: q.Get("status")}, nil
}

func intParam(q url.Values, name string, defaultValue int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return v, nil
}

// AlertListRequest holds the query parameters of GET /api/ids/alerts.
type AlertListRequest struct {
	Limit  int    `json:"limit" validate:"min=1,max=500"`
	Offset int    `json:"offset" validate:"min=0"`
	Status string `json:"status" validate:"omitempty,oneof=detected investigating resolved"`
}
