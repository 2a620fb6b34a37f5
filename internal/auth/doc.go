// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

/*
Package auth issues and validates session tokens and authenticates users
against a static directory.

Key Components:

  - JWTManager: HS256 token generation and validation
  - UserDirectory: configured users with bcrypt-hashed passwords
  - Middleware: strict authentication for routes that require a session,
    and a tolerant Identify used by the decoy layer

Token transport:

Tokens are read from the Authorization header (Bearer scheme), the "token"
cookie, or the "token" query parameter. The query parameter exists because
browsers cannot set headers on a WebSocket handshake.

Tolerant identification:

Protected resources never answer 401. When a token is missing or invalid,
Identify reports the X-Username header as the identity and marks the request
as unauthenticated so the decoy policy can route it to the decoy view.
*/
package auth
