// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

/*
Package websocket carries pointer telemetry from browser collectors to the
detection pipeline and pushes force-decoy signals back.

Key Components:

  - Hub: registry of live sessions keyed by session ID. It implements
    detection.Pusher and broadcasts ids-alert messages to admin sessions.
  - Client: one authenticated connection with a read and a write goroutine.
    Inbound mouse-events batches are rate limited per connection and handed
    to a BatchHandler (detection.SessionHandler in production).
  - Message: the typed JSON frame used in both directions.

Architecture:

	browser ──mouse-events──▶ Client.readPump ──▶ BatchHandler.OnEventBatch
	                                                    │ anomalous
	browser ◀──force-decoy── Client.writePump ◀── Hub.PushForceDecoy
	admin   ◀──ids-alert──── Hub.BroadcastAlert ◀── eventbus

Message Types:

  - session: sent once after connect, carries the session ID
  - mouse-events: client to server, data is an array of pointer events
  - force-decoy: server to client, {reason, score}
  - ids-alert: server to admin clients, a detection.Alert
  - throttled: server to client when a batch was dropped by the limiter
  - ping / pong: application-level keepalive

Delivery to a session is best effort. A full send queue drops the message
and logs a warning; it never blocks the detection path.
*/
package websocket
