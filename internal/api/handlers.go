// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package api

import (
	"context"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/decoyshield/internal/auth"
	"github.com/tomtom215/decoyshield/internal/authz"
	"github.com/tomtom215/decoyshield/internal/config"
	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/honeytoken"
	ws "github.com/tomtom215/decoyshield/internal/websocket"
)

// AlertStore is the alert persistence used by the handlers.
// detection.DuckDBStore implements it.
type AlertStore interface {
	detection.AlertSink
	Count(ctx context.Context, filter detection.AlertFilter) (int, error)
}

// DocumentService manages honey documents. honeytoken.Registry implements it.
type DocumentService interface {
	Create(ctx context.Context, title, templateName string) (*honeytoken.HoneyDocument, error)
	Verify(ctx context.Context, id string) (*honeytoken.HoneyDocument, error)
	List(ctx context.Context) ([]honeytoken.DocumentSummary, error)
	Get(ctx context.Context, id string) (*honeytoken.HoneyDocument, error)
	Update(ctx context.Context, id string, upd honeytoken.DocumentUpdate) (*honeytoken.HoneyDocument, error)
	Delete(ctx context.Context, id string) error
	Open(ctx context.Context, id string) (io.ReadCloser, *honeytoken.HoneyDocument, error)
	InventoryEnabled() bool
}

// pinger is implemented by stores that can report connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// HandlerDeps are the collaborators of a Handler. Hub and Sessions may be
// nil, in which case the WebSocket route answers 503.
type HandlerDeps struct {
	Config    *config.Config
	Users     *auth.UserDirectory
	JWT       *auth.JWTManager
	Enforcer  *authz.Enforcer
	Alerts    AlertStore
	Suspicion *detection.Registry
	Documents DocumentService
	Hub       *ws.Hub
	Sessions  ws.BatchHandler
}

// Handler serves the HTTP API.
type Handler struct {
	config     *config.Config
	users      *auth.UserDirectory
	jwtManager *auth.JWTManager
	enforcer   *authz.Enforcer
	alerts     AlertStore
	suspicion  *detection.Registry
	documents  DocumentService
	wsHub      *ws.Hub
	sessions   ws.BatchHandler
	startTime  time.Time
}

// NewHandler creates a Handler from deps.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		config:     deps.Config,
		users:      deps.Users,
		jwtManager: deps.JWT,
		enforcer:   deps.Enforcer,
		alerts:     deps.Alerts,
		suspicion:  deps.Suspicion,
		documents:  deps.Documents,
		wsHub:      deps.Hub,
		sessions:   deps.Sessions,
		startTime:  time.Now(),
	}
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}
