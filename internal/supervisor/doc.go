// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

/*
Package supervisor runs Decoyshield's long-lived services under a suture v4
supervisor tree.

# Layout

	Root ("decoyshield")
	├── Infra ("infra-layer")
	│   └── EmbeddedNATSService (NATS_EMBEDDED only)
	├── Messaging ("messaging-layer")
	│   ├── websocket.Hub
	│   └── eventbus.Bus
	└── API ("api-layer")
	    └── HTTPServerService

Each layer counts failures on its own. A hub that keeps crashing backs off
without taking the HTTP server down with it, so decoy decisions keep being
served.

# Usage

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(hub)
	tree.AddMessagingService(bus)
	tree.AddAPIService(services.NewHTTPServerService(server, "", 10*time.Second))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

Supervisor events (start, failure, backoff) reach the zerolog pipeline
through sutureslog and the logging package's slog bridge.

See the services subpackage for the HTTP server and NATS server wrappers.
*/
package supervisor
