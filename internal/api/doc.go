// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

/*
Package api provides the HTTP surface of Decoyshield.

Routes are served by a chi router built in SetupChi. Every JSON response uses
the models.APIResponse envelope.

# Route Groups

Public:
  - GET  /health
  - GET  /metrics
  - POST /api/auth/login (strict per-IP rate limit)

Authenticated (401 without a valid token):
  - GET /api/auth/me (adds X-Decoy: 1 while the caller is suspicious)
  - GET /api/ids/my-alerts

Admin (casbin, 403 otherwise):
  - GET    /api/ids/suspicious
  - DELETE /api/ids/suspicious/{identity}

Decoy-protected (admins reach the real handler, flagged callers receive a
fabricated response marked with X-Decoy, everyone else gets 403):
  - GET /api/ids/alerts, PATCH /api/ids/alerts/{id}
  - /api/decoydocs and its sub-routes

WebSocket:
  - GET /api/ids/ws?token=<jwt> streams pointer events into the detection
    session handler and receives force-decoy pushes.

# Middleware Stack

Global middleware runs in this order:

 1. middleware.RequestID (request and correlation IDs)
 2. chi RealIP and Recoverer
 3. CORS (go-chi/cors)
 4. APISecurityHeaders
 5. middleware.PrometheusMetrics

Per-group rate limits use go-chi/httprate.
*/
package api
