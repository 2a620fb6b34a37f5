// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (e.g. SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeSession     = "session"
	MessageTypeMouseEvents = "mouse-events"
	MessageTypeForceDecoy  = "force-decoy"
	MessageTypeAlert       = "ids-alert"
	MessageTypeThrottled   = "throttled"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
)

var (
	// ErrSessionNotFound is returned when a push targets an unknown session.
	ErrSessionNotFound = errors.New("websocket session not found")

	// ErrSendQueueFull is returned when a session's outbound queue is full.
	ErrSendQueueFull = errors.New("websocket send queue full")
)

// Message is an outbound WebSocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundMessage defers decoding of Data until the type is known.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SessionData is the payload of the session message.
type SessionData struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

// Hub maintains the set of active clients and routes messages to them.
type Hub struct {
	clients    map[*Client]bool
	sessions   map[string]*Client
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]*Client),
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client and returns ctx.Err().
//
// Shutdown is checked first, then register/unregister, then broadcasts, so
// client state is settled before any message is routed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.unregister(client)

		case message := <-h.broadcast:
			h.broadcastToAdmins(message)
		}
	}
}

// Serve lets the supervisor run the hub.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String names the service for the supervisor.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	if prev, ok := h.sessions[client.sessionID]; ok && prev != client {
		h.removeLocked(prev)
	}
	h.sessions[client.sessionID] = client
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnectionsActive.Set(float64(total))
	logging.Info().
		Str("session_id", client.sessionID).
		Str("username", client.username).
		Int("total_clients", total).
		Msg("websocket client connected")

	// Queue the session greeting; register runs before any read happens.
	client.trySend(Message{
		Type: MessageTypeSession,
		Data: SessionData{SessionID: client.sessionID, Username: client.username},
	})
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	removed := h.clients[client]
	if removed {
		h.removeLocked(client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		metrics.WSConnectionsActive.Set(float64(total))
		logging.Info().
			Str("session_id", client.sessionID).
			Int("total_clients", total).
			Msg("websocket client disconnected")
	}
}

// removeLocked drops client from both indexes and closes its queue.
// Caller holds h.mu.
func (h *Hub) removeLocked(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	if h.sessions[client.sessionID] == client {
		delete(h.sessions, client.sessionID)
	}
	close(client.send)
}

// logGracefulShutdown closes every client and logs why the hub stopped.
// ctx.Err() is not logged as an error; cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()

	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns clients in ID order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToAdmins sends message to every admin session in ID order.
// Admins whose queue is full are disconnected.
func (h *Hub) broadcastToAdmins(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if !client.admin {
			continue
		}
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		h.removeLocked(client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnectionsActive.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		h.removeLocked(client)
	}
	metrics.WSConnectionsActive.Set(0)
}

// BroadcastAlert queues alert for every connected admin. Its signature
// matches eventbus.AlertHandler.
func (h *Hub) BroadcastAlert(_ context.Context, alert *detection.Alert) {
	if alert == nil {
		return
	}
	// Admin dashboards get the summary; the sample stays in the store.
	summary := *alert
	summary.SampleEvents = nil

	select {
	case h.broadcast <- Message{Type: MessageTypeAlert, Data: &summary}:
	default:
		logging.Warn().Int64("alert_id", alert.ID).Msg("broadcast channel full, dropping ids-alert message")
	}
}

// PushForceDecoy queues a force-decoy message for sessionID. It never
// blocks: an unknown session or a full queue returns an error and counts
// as dropped.
func (h *Hub) PushForceDecoy(sessionID string, signal detection.ForceDecoySignal) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.sessions[sessionID]
	if !ok {
		metrics.RecordForceDecoyPush(false)
		return ErrSessionNotFound
	}

	select {
	case client.send <- Message{Type: MessageTypeForceDecoy, Data: signal}:
		metrics.RecordForceDecoyPush(true)
		logging.Info().
			Str("session_id", sessionID).
			Str("username", client.username).
			Float64("score", signal.Score).
			Msg("force-decoy pushed")
		return nil
	default:
		metrics.RecordForceDecoyPush(false)
		logging.Warn().Str("session_id", sessionID).Msg("send queue full, dropping force-decoy message")
		return ErrSendQueueFull
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HasSession reports whether sessionID is connected.
func (h *Hub) HasSession(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[sessionID]
	return ok
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
