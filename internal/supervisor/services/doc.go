// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

/*
Package services adapts components whose lifecycle is not already
Serve(ctx) error into suture services.

HTTPServerService opens its listener inside Serve, so a port clash is a
restartable failure, and drains the server on cancellation.

EmbeddedNATSService watches an in-process NATS server that was started
before the event bus dialed it, and shuts it down with the tree.

websocket.Hub and eventbus.Bus implement suture.Service themselves and are
added to the tree directly.
*/
package services
