// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/decoyshield/internal/config"
	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/eventbus"
	"github.com/tomtom215/decoyshield/internal/honeytoken"
	"github.com/tomtom215/decoyshield/internal/logging"
)

// newSessionHandler builds the scorer and session handler from
// DETECTION_* settings. The pusher and publisher are attached later.
func newSessionHandler(cfg *config.Config, suspicion *detection.Registry, alerts detection.AlertSink) *detection.SessionHandler {
	scorer := detection.NewThresholdScorer(detection.ThresholdConfig{
		MinBatch:    cfg.Detection.MinBatch,
		MaxStddevMs: cfg.Detection.MaxStddevMs,
		MinMeanMs:   cfg.Detection.MinMeanMs,
		MaxMeanMs:   cfg.Detection.MaxMeanMs,
	})
	return detection.NewSessionHandler(scorer, suspicion, alerts, nil, detection.SessionHandlerConfig{
		MinBatch:     cfg.Detection.MinBatch,
		SuspicionTTL: cfg.Detection.SuspicionTTL,
		SampleLimit:  cfg.Detection.AlertSampleLimit,
	})
}

// newDocumentRegistry wires the honey document registry with the generator
// and inventory selected by HONEYDOC_*, GENERATOR_* and INVENTORY_* settings.
func newDocumentRegistry(cfg *config.Config, catalog honeytoken.Catalog) (*honeytoken.Registry, error) {
	var generator honeytoken.Generator
	if cfg.Honeytoken.GeneratorCommand != "" {
		cmd, err := honeytoken.NewCommandGenerator(cfg.Honeytoken.GeneratorCommand)
		if err != nil {
			return nil, fmt.Errorf("document generator: %w", err)
		}
		generator = cmd
		logging.Info().Str("command", cfg.Honeytoken.GeneratorCommand).Msg("External document generator configured")
	}

	// A nil *InventoryClient must not reach the interface.
	var inventory honeytoken.Inventory
	if cfg.InventoryEnabled() {
		inventory = honeytoken.NewInventoryClient(cfg.Honeytoken.InventoryURL, honeytoken.RetryPolicy{
			MaxAttempts:    cfg.Honeytoken.InventoryMaxAttempts,
			BackoffBase:    cfg.Honeytoken.InventoryBackoff,
			AttemptTimeout: cfg.Honeytoken.InventoryTimeout,
		})
		logging.Info().Str("url", cfg.Honeytoken.InventoryURL).Msg("Honeytoken inventory registration enabled")
	} else {
		logging.Info().Msg("Honeytoken inventory not configured - documents stay local")
	}

	return honeytoken.NewRegistry(catalog, generator, inventory, honeytoken.RegistryConfig{
		BeaconDomain:     cfg.Honeytoken.BeaconDomain,
		StorageDir:       cfg.Honeytoken.StorageDir,
		GeneratorTimeout: cfg.Honeytoken.GeneratorTimeout,
	})
}

// initEvents creates the alert bus. With NATS_EMBEDDED an in-process
// NATS server is started first and returned so the caller can supervise it.
func initEvents(cfg *config.Config) (*eventbus.Bus, *eventbus.EmbeddedServer, error) {
	natsURL := cfg.Events.NATSURL

	var embedded *eventbus.EmbeddedServer
	if cfg.Events.NATSEmbedded {
		var err error
		embedded, err = eventbus.StartEmbeddedServer("127.0.0.1", cfg.Events.NATSPort)
		if err != nil {
			return nil, nil, fmt.Errorf("embedded NATS: %w", err)
		}
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	bus, err := eventbus.New(eventbus.Config{
		NATSURL: natsURL,
		Topic:   cfg.Events.AlertTopic,
	})
	if err != nil {
		if embedded != nil {
			_ = embedded.Shutdown(context.Background())
		}
		return nil, nil, err
	}

	logging.Info().
		Str("backend", bus.Backend()).
		Str("topic", bus.Topic()).
		Msg("Alert event bus initialized")
	return bus, embedded, nil
}
