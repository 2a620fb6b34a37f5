// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

/*
Package main is the entry point for the Decoyshield server.

Decoyshield is a deception-based intrusion detection service. Browser
sessions stream pointer events over a websocket; batches with machine-like
timing raise an alert and flag the identity. Flagged callers keep getting
successful responses on protected routes, but the payloads are decoys
seeded with beaconed honey documents.

# Startup order

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Stores: DuckDB alert store, badger honey document catalogue
 3. Honey document registry, generator and optional remote inventory
 4. JWT, user directory and Casbin enforcer
 5. Suspicion registry, scorer and session handler
 6. Websocket hub and alert event bus (gochannel, NATS, or embedded NATS)
 7. Chi router with decoy middleware
 8. Supervisor tree; blocks until SIGINT or SIGTERM

# Configuration

Required:
  - JWT_SECRET: 32+ character signing secret
  - ADMIN_USERNAME, ADMIN_PASSWORD: the seeded admin account

Common:
  - HTTP_PORT (default 8080)
  - AUTH_USERS: extra accounts as name:password:role, comma separated
  - SUSPICION_TTL (default 5m)
  - ALERT_DB_PATH: DuckDB file; empty keeps alerts in memory
  - HONEYDOC_STORAGE_DIR, HONEYDOC_CATALOG_PATH
  - INVENTORY_URL: remote honeytoken inventory; empty disables registration
  - NATS_URL or NATS_EMBEDDED=true: cross-process alert fan-out

# Example

	export JWT_SECRET=$(openssl rand -base64 32)
	export ADMIN_USERNAME=admin
	export ADMIN_PASSWORD=change-me-please
	export CORS_ORIGINS=https://portal.example.com
	./decoyshield
*/
package main
