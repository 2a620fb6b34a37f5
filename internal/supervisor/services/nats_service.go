// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package services

import (
	"context"
	"errors"
	"time"
)

// ErrNATSServerStopped means the embedded server stopped on its own.
var ErrNATSServerStopped = errors.New("embedded NATS server stopped")

// EmbeddedNATSServer matches *eventbus.EmbeddedServer.
type EmbeddedNATSServer interface {
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// EmbeddedNATSService owns the shutdown of an already started embedded
// NATS server. The server is started before the event bus connects to it,
// so the service only watches it and stops it when the tree stops.
type EmbeddedNATSService struct {
	server          EmbeddedNATSServer
	shutdownTimeout time.Duration
	pollInterval    time.Duration
	name            string
}

// NewEmbeddedNATSService wraps server.
func NewEmbeddedNATSService(server EmbeddedNATSServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		pollInterval:    time.Second,
		name:            "nats-server",
	}
}

// Serve implements suture.Service. A server found stopped is reported as
// ErrNATSServerStopped; an in-process server cannot be restarted, so the
// failure is left to suture's backoff and the logs.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	if !s.server.IsRunning() {
		return ErrNATSServerStopped
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return ctx.Err()

		case <-ticker.C:
			if !s.server.IsRunning() {
				return ErrNATSServerStopped
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *EmbeddedNATSService) String() string {
	return s.name
}
