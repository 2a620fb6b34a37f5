// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

/*
Package eventbus fans IDS alerts out to live subscribers over Watermill.

The default backend is an in-process gochannel Pub/Sub. Setting a NATS URL
switches both sides to core NATS (JetStream disabled), so several instances
can share alerts and every instance's admin dashboards see all of them. An
embedded nats-server can be started for single-node deployments that still
want an external subscriber surface.

Alerts travel as goccy/go-json encoded detection.Alert payloads. Publishing
is guarded by a gobreaker circuit breaker; a failed publish never affects
detection, which persists the alert before it reaches the bus.

Usage:

	bus, err := eventbus.New(eventbus.Config{Topic: "ids.alerts"})
	if err != nil {
	    return err
	}
	bus.OnAlert(hub.BroadcastAlert)
	handler.SetPublisher(bus)
	go bus.Serve(ctx)
*/
package eventbus
