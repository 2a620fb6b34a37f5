// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/decoyshield/internal/api"
	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/authz"
	"github.com/tomtom215/decoyshield/internal/config"
	"github.com/tomtom215/decoyshield/internal/decoy"
	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/honeytoken"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/supervisor"
	"github.com/tomtom215/decoyshield/internal/supervisor/services"
	"github.com/tomtom215/decoyshield/internal/validation"
	ws "github.com/tomtom215/decoyshield/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Starting Decoyshield with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores

	alerts, err := detection.OpenDuckDBStore(ctx, cfg.Detection.AlertDBPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open alert store")
	}
	defer func() {
		if err := alerts.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing alert store")
		}
	}()
	if cfg.Detection.AlertDBPath == "" {
		logging.Warn().Msg("ALERT_DB_PATH not set - alerts are kept in memory only")
	}

	catalog, err := honeytoken.OpenBadgerCatalog(cfg.Honeytoken.CatalogPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open honey document catalogue")
	}
	defer func() {
		if err := catalog.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing honey document catalogue")
		}
	}()

	documents, err := newDocumentRegistry(cfg, catalog)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize honey document registry")
	}
	validation.RegisterTemplates(honeytoken.Templates())

	// Identity and policy

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	users, err := auth.NewUserDirectory(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize user directory")
	}
	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{
		ModelPath:  cfg.Security.Casbin.ModelPath,
		PolicyPath: cfg.Security.Casbin.PolicyPath,
		CacheTTL:   cfg.Security.Casbin.CacheTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize RBAC enforcer")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*). Set explicit origins in production.")
	}

	// Detection pipeline

	suspicion := detection.NewRegistry(detection.WithDefaultTTL(cfg.Detection.SuspicionTTL))
	sessions := newSessionHandler(cfg, suspicion, alerts)

	hub := ws.NewHub()
	sessions.SetPusher(hub)

	bus, embeddedNATS, err := initEvents(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize alert event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing alert event bus")
		}
	}()
	sessions.SetPublisher(bus)
	bus.OnAlert(hub.BroadcastAlert)

	// HTTP surface

	authMW := auth.NewMiddleware(jwtManager)
	decoyMW := decoy.NewMiddleware(
		decoy.NewPolicy(suspicion, enforcer),
		authMW,
		decoy.NewProvider(documents, cfg.Honeytoken.BeaconDomain),
	)

	handler := api.NewHandler(api.HandlerDeps{
		Config:    cfg,
		Users:     users,
		JWT:       jwtManager,
		Enforcer:  enforcer,
		Alerts:    alerts,
		Suspicion: suspicion,
		Documents: documents,
		Hub:       hub,
		Sessions:  sessions,
	})
	router := api.NewRouter(handler, authMW, authz.NewMiddleware(enforcer), decoyMW,
		api.NewChiMiddleware(api.NewChiMiddlewareConfig(&cfg.Security)))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// Supervision

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if embeddedNATS != nil {
		tree.AddInfraService(services.NewEmbeddedNATSService(embeddedNATS, 10*time.Second))
	}
	tree.AddMessagingService(hub)
	tree.AddMessagingService(bus)
	tree.AddAPIService(services.NewHTTPServerService(server, "", 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// ServeBackground sends exactly one result and never closes the channel.
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	// In-flight anomaly handling may still be writing alerts.
	sessions.Wait()

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	stats := sessions.Stats()
	logging.Info().
		Int64("batches", stats.BatchesReceived).
		Int64("anomalies", stats.Anomalies).
		Msg("Application stopped gracefully")
}
