// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
)

// DefaultTopic carries alert events when Config.Topic is empty.
const DefaultTopic = "ids.alerts"

const (
	BackendChannel = "gochannel"
	BackendNATS    = "nats"
)

// Metadata keys set on every alert message.
const (
	MetadataIdentity      = "identity"
	MetadataSessionID     = "session_id"
	MetadataCorrelationID = "correlation_id"
)

// ErrClosed is returned by Publish and Serve after Close.
var ErrClosed = errors.New("event bus closed")

// Config selects and tunes the backend.
type Config struct {
	// NATSURL selects the NATS backend. Empty uses gochannel.
	NATSURL string

	Topic string

	// BufferSize is the gochannel output buffer per subscriber.
	BufferSize int64

	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
	return c
}

// AlertHandler receives every alert seen on the bus.
type AlertHandler func(ctx context.Context, alert *detection.Alert)

// Bus publishes detection alerts and dispatches them to registered handlers.
// It implements detection.AlertPublisher.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *gobreaker.CircuitBreaker[interface{}]
	logger     watermill.LoggerAdapter
	topic      string
	backend    string

	mu       sync.RWMutex
	handlers []AlertHandler
	closed   bool

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a bus for cfg.
func New(cfg Config) (*Bus, error) {
	cfg = cfg.withDefaults()
	logger := logging.NewWatermillAdapter()

	b := &Bus{
		logger: logger,
		topic:  cfg.Topic,
		ready:  make(chan struct{}),
	}

	if cfg.NATSURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, logger)
		b.publisher = ch
		b.subscriber = ch
		b.backend = BackendChannel
	} else {
		pub, sub, err := newNATS(cfg, logger)
		if err != nil {
			return nil, err
		}
		b.publisher = pub
		b.subscriber = sub
		b.backend = BackendNATS
	}

	b.breaker = newBreaker("eventbus-" + b.backend)
	return b, nil
}

func newNATS(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("decoyshield"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	// Core NATS: alerts are live notifications, the DuckDB store is the
	// durable record.
	js := wmNats.JetStreamConfig{Disabled: true}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   js,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        js,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return pub, sub, nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker[interface{}] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Backend reports "gochannel" or "nats".
func (b *Bus) Backend() string {
	return b.backend
}

// Topic is the subject alerts are published on.
func (b *Bus) Topic() string {
	return b.topic
}

// OnAlert registers h for every alert consumed by Serve.
func (b *Bus) OnAlert(h AlertHandler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Ready is closed once Serve has subscribed. gochannel drops messages
// published before that point.
func (b *Bus) Ready() <-chan struct{} {
	return b.ready
}

// PublishAlert encodes alert and publishes it on the alert topic.
func (b *Bus) PublishAlert(ctx context.Context, alert *detection.Alert) error {
	err := b.publishAlert(ctx, alert)
	metrics.RecordEventPublish(err)
	return err
}

func (b *Bus) publishAlert(ctx context.Context, alert *detection.Alert) error {
	if alert == nil {
		return errors.New("nil alert")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataIdentity, alert.Identity)
	msg.Metadata.Set(MetadataSessionID, alert.SessionID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}
	msg.SetContext(ctx)

	_, err = b.breaker.Execute(func() (interface{}, error) {
		return nil, b.publisher.Publish(b.topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish alert %d: %w", alert.ID, err)
	}
	return nil
}

// Serve consumes the alert topic until ctx is canceled and hands every
// decoded alert to the registered handlers. It returns ErrClosed if the
// subscription ends while ctx is still live.
func (b *Bus) Serve(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	b.readyOnce.Do(func() { close(b.ready) })

	logging.Info().
		Str("backend", b.backend).
		Str("topic", b.topic).
		Msg("Event bus consuming alerts")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrClosed
			}
			b.dispatch(ctx, msg)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, msg *message.Message) {
	// Undecodable payloads are acked too; redelivery cannot fix them.
	defer msg.Ack()

	var alert detection.Alert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable alert event")
		return
	}

	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}

	b.mu.RLock()
	handlers := make([]AlertHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, &alert)
	}
}

// String names the service for the supervisor.
func (b *Bus) String() string {
	return "eventbus-" + b.backend
}

// Close shuts down both sides of the bus. It is safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	pubErr := b.publisher.Close()
	if b.backend == BackendChannel {
		return pubErr
	}
	return errors.Join(pubErr, b.subscriber.Close())
}
