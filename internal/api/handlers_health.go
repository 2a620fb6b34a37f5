// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status           string  `json:"status"`
	AlertStoreOK     bool    `json:"alert_store_ok"`
	InventoryEnabled bool    `json:"inventory_enabled"`
	SuspiciousCount  int     `json:"suspicious_count"`
	WebSocketClients int     `json:"websocket_clients"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Environment      string  `json:"environment,omitempty"`
}

// Health reports liveness and alert store connectivity. A failing alert
// store degrades the status but still answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	storeOK := h.alerts != nil
	if p, ok := h.alerts.(pinger); ok {
		storeOK = p.Ping(r.Context()) == nil
	}

	status := HealthStatus{
		Status:        "healthy",
		AlertStoreOK:  storeOK,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if !storeOK {
		status.Status = "degraded"
	}
	if h.documents != nil {
		status.InventoryEnabled = h.documents.InventoryEnabled()
	}
	if h.suspicion != nil {
		status.SuspiciousCount = h.suspicion.Len()
	}
	if h.wsHub != nil {
		status.WebSocketClients = h.wsHub.GetClientCount()
	}
	if h.config != nil {
		status.Environment = h.config.Server.Environment
	}

	respondJSON(w, http.StatusOK, status)
}
