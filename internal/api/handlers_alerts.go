// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/models"
	"github.com/tomtom215/decoyshield/internal/validation"
)

const myAlertsLimit = 10

// ListAlerts returns alerts newest first with offset pagination.
//
// Query parameters: limit (1-500, default 50), offset, status.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, err := models.ParseAlertListQuery(r.URL.Query())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, verr)
		return
	}

	filter := detection.AlertFilter{Limit: req.Limit, Offset: req.Offset}
	if req.Status != "" {
		filter.Statuses = []detection.AlertStatus{detection.AlertStatus(req.Status)}
	}

	alerts, err := h.alerts.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Failed to list alerts", err)
		return
	}
	total, err := h.alerts.Count(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Failed to count alerts", err)
		return
	}

	resp := models.Success(alerts)
	resp.Metadata.QueryTimeMS = time.Since(start).Milliseconds()
	resp.Metadata.Pagination = &models.PaginationInfo{
		Limit:  req.Limit,
		Offset: req.Offset,
		Total:  total,
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

// UpdateAlertStatus sets the triage status of one alert.
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "Invalid alert id", nil)
		return
	}

	var req models.AlertStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	status, err := detection.ParseStatus(req.Status)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "Invalid alert status", nil)
		return
	}

	alert, err := h.alerts.UpdateStatus(r.Context(), id, status)
	if errors.Is(err, detection.ErrAlertNotFound) {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "Alert not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Failed to update alert", err)
		return
	}

	logging.CtxInfo(r.Context()).
		Int64("alert_id", id).
		Str("status", string(status)).
		Msg("Alert status updated")
	respondJSON(w, http.StatusOK, alert)
}

// MyAlerts returns the caller's ten most recent alerts.
func (h *Handler) MyAlerts(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, models.CodeUnauthorized, "Authentication required", nil)
		return
	}

	alerts, err := h.alerts.List(r.Context(), detection.AlertFilter{
		Identity: claims.Username,
		Limit:    myAlertsLimit,
	})
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "Failed to list alerts", err)
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}
