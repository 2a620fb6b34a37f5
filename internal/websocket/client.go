// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
	sendQueueSize  = 256
)

// clientIDCounter gives clients a stable ordering for broadcasts.
var clientIDCounter atomic.Uint64

// BatchHandler consumes pointer-event batches. detection.SessionHandler
// implements it.
type BatchHandler interface {
	OnEventBatch(ctx context.Context, sessionID, identity string, batch detection.EventBatch) (*detection.AnomalyVerdict, error)
}

// ClientOptions describes an authenticated connection.
type ClientOptions struct {
	Username string
	Admin    bool

	// Handler receives mouse-events batches. Nil drops them.
	Handler BatchHandler

	// BatchRate and BatchBurst limit mouse-events batches per connection.
	// A zero rate disables limiting.
	BatchRate  float64
	BatchBurst int
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id        uint64
	sessionID string
	username  string
	admin     bool

	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	handler BatchHandler
	limiter *rate.Limiter

	// ctx carries request-scoped log fields into batch handling.
	ctx context.Context
}

// NewClient creates a client with a fresh session ID. ctx should carry the
// upgrade request's logging values; it must not be canceled when the HTTP
// handler returns.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.BatchRate > 0 {
		burst := opts.BatchBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.BatchRate), burst)
	}

	return &Client{
		id:        clientIDCounter.Add(1),
		sessionID: uuid.New().String(),
		username:  opts.Username,
		admin:     opts.Admin,
		hub:       hub,
		conn:      conn,
		send:      make(chan Message, sendQueueSize),
		handler:   opts.Handler,
		limiter:   limiter,
		ctx:       ctx,
	}
}

// ID returns the client's ordering key.
func (c *Client) ID() uint64 {
	return c.id
}

// SessionID is the key force-decoy pushes are addressed to.
func (c *Client) SessionID() string {
	return c.sessionID
}

// trySend queues msg unless the client is gone or its queue is full.
func (c *Client) trySend(msg Message) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if !c.hub.clients[c] {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readPump pumps messages from the websocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		// Direct call: the hub loop may already have stopped.
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("session_id", c.sessionID).Msg("unexpected websocket close error")
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debug().Err(err).Str("session_id", c.sessionID).Msg("ignoring malformed websocket frame")
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inboundMessage) {
	switch msg.Type {
	case MessageTypePing:
		c.trySend(Message{Type: MessageTypePong})

	case MessageTypeMouseEvents:
		if !c.limiter.Allow() {
			metrics.WSBatchesThrottled.Inc()
			c.trySend(Message{Type: MessageTypeThrottled, Data: map[string]string{"reason": "rate_limited"}})
			return
		}

		var batch detection.EventBatch
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			logging.Debug().Err(err).Str("session_id", c.sessionID).Msg("ignoring undecodable mouse-events batch")
			return
		}
		if len(batch) == 0 || c.handler == nil {
			return
		}

		if _, err := c.handler.OnEventBatch(c.ctx, c.sessionID, c.username, batch); err != nil {
			logging.CtxWarn(c.ctx).Err(err).Str("session_id", c.sessionID).Msg("event batch rejected")
		}

	default:
		logging.Debug().Str("type", msg.Type).Str("session_id", c.sessionID).Msg("ignoring unknown websocket message type")
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("type", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Debug().Err(err).Str("session_id", c.sessionID).Msg("failed to write websocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
