// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package detection

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
)

// ForceDecoyReasonAnomaly is the reason sent with a force-decoy push.
const ForceDecoyReasonAnomaly = "anomaly"

// ForceDecoySignal instructs a connected client to switch to decoy views.
type ForceDecoySignal struct {
	Reason string  `json:"reason"`
	Score  float64 `json:"score"`
}

// Pusher delivers a force-decoy signal to one session.
type Pusher interface {
	PushForceDecoy(sessionID string, signal ForceDecoySignal) error
}

// AlertPublisher fans an alert out to dashboards and other subscribers.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *Alert) error
}

// SessionHandlerConfig configures a SessionHandler.
type SessionHandlerConfig struct {
	// MinBatch is the batch length at which scoring starts.
	MinBatch int

	// SuspicionTTL is passed to Registry.MarkSuspicious.
	SuspicionTTL time.Duration

	// SampleLimit caps the events stored with an alert.
	SampleLimit int

	// PublishTimeout bounds the background alert publish.
	PublishTimeout time.Duration

	// WriteTimeout bounds the alert store write.
	WriteTimeout time.Duration
}

// DefaultSessionHandlerConfig returns the standard handler settings.
func DefaultSessionHandlerConfig() SessionHandlerConfig {
	return SessionHandlerConfig{
		MinBatch:       40,
		SuspicionTTL:   DefaultSuspicionTTL,
		SampleLimit:    200,
		PublishTimeout: 5 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

// SessionStats is a point-in-time copy of handler counters.
type SessionStats struct {
	BatchesReceived int64     `json:"batches_received"`
	BatchesScored   int64     `json:"batches_scored"`
	Anomalies       int64     `json:"anomalies"`
	AlertFailures   int64     `json:"alert_failures"`
	LastAnomalyAt   time.Time `json:"last_anomaly_at,omitempty"`
}

// SessionHandler reacts to pointer-event batches from live sessions.
// An anomalous batch produces an alert, flags the identity in the
// Registry, and pushes a force-decoy signal back to the session.
type SessionHandler struct {
	scorer    Scorer
	registry  *Registry
	sink      AlertSink
	pusher    Pusher
	publisher AlertPublisher
	cfg       SessionHandlerConfig

	statsMu sync.Mutex
	stats   SessionStats

	wg sync.WaitGroup
}

// NewSessionHandler wires a handler. sink, pusher and publisher may be nil.
func NewSessionHandler(scorer Scorer, registry *Registry, sink AlertSink, pusher Pusher, cfg SessionHandlerConfig) *SessionHandler {
	def := DefaultSessionHandlerConfig()
	if cfg.MinBatch <= 0 {
		cfg.MinBatch = def.MinBatch
	}
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = def.SampleLimit
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &SessionHandler{
		scorer:   scorer,
		registry: registry,
		sink:     sink,
		pusher:   pusher,
		cfg:      cfg,
	}
}

// SetPusher replaces the force-decoy transport. Call before serving.
func (h *SessionHandler) SetPusher(p Pusher) {
	h.pusher = p
}

// SetPublisher attaches an alert fan-out. Call before serving.
func (h *SessionHandler) SetPublisher(p AlertPublisher) {
	h.publisher = p
}

// OnEventBatch processes one batch. It returns the verdict when the batch
// was scored, or nil when it was too small or lacked timing data.
func (h *SessionHandler) OnEventBatch(ctx context.Context, sessionID, identity string, batch EventBatch) (*AnomalyVerdict, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	if identity == "" {
		identity = UnknownIdentity
	}

	metrics.RecordBatch(len(batch))
	h.updateStats(func(s *SessionStats) { s.BatchesReceived++ })

	logging.CtxDebug(ctx).
		Str("session_id", sessionID).
		Str("identity", identity).
		Int("events", len(batch)).
		Msg("received pointer batch")

	if len(batch) < h.cfg.MinBatch {
		metrics.RecordVerdict("skipped")
		return nil, nil
	}

	verdict, ok := h.scorer.Score(batch)
	if !ok {
		metrics.RecordVerdict("skipped")
		return nil, nil
	}
	h.updateStats(func(s *SessionStats) { s.BatchesScored++ })

	if !verdict.IsAnomalous {
		metrics.RecordVerdict("normal")
		return &verdict, nil
	}
	metrics.RecordVerdict("anomalous")

	h.onAnomaly(ctx, sessionID, identity, batch, verdict)
	return &verdict, nil
}

func (h *SessionHandler) onAnomaly(ctx context.Context, sessionID, identity string, batch EventBatch, verdict AnomalyVerdict) {
	now := time.Now().UTC()
	h.updateStats(func(s *SessionStats) {
		s.Anomalies++
		s.LastAnomalyAt = now
	})

	alert := &Alert{
		Identity:     identity,
		AnomalyScore: verdict.Score,
		Threshold:    AlertThreshold,
		SampleEvents: truncateSample(batch, h.cfg.SampleLimit),
		SessionID:    sessionID,
		Status:       StatusDetected,
		CreatedAt:    now,
	}

	// Suspicion and the push never wait on the alert store.
	if h.registry != nil {
		h.registry.MarkSuspicious(identity, h.cfg.SuspicionTTL)
		metrics.RecordSuspicionMark(h.registry.Len())
	}
	h.pushForceDecoy(ctx, sessionID, verdict.Score)

	logging.CtxWarn(ctx).
		Str("session_id", sessionID).
		Str("identity", identity).
		Float64("mean_delta_ms", verdict.MeanDeltaMs).
		Float64("stddev_delta_ms", verdict.StddevDeltaMs).
		Int("sample_size", verdict.SampleSize).
		Msg("robotic pointer timing detected")

	h.writeAlert(ctx, alert)
	h.publish(ctx, alert)
}

// writeAlert persists alert. Failures are logged and counted only.
func (h *SessionHandler) writeAlert(ctx context.Context, alert *Alert) {
	if h.sink == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	err := h.sink.Write(writeCtx, alert)
	metrics.RecordAlert(err)
	if err != nil {
		h.updateStats(func(s *SessionStats) { s.AlertFailures++ })
		logging.CtxErr(ctx, err).
			Str("identity", alert.Identity).
			Str("session_id", alert.SessionID).
			Msg("failed to persist ids alert")
	}
}

func (h *SessionHandler) pushForceDecoy(ctx context.Context, sessionID string, score float64) {
	if h.pusher == nil {
		return
	}
	signal := ForceDecoySignal{Reason: ForceDecoyReasonAnomaly, Score: score}
	logger := logging.Ctx(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.pusher.PushForceDecoy(sessionID, signal); err != nil {
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("force-decoy push failed")
		}
	}()
}

func (h *SessionHandler) publish(ctx context.Context, alert *Alert) {
	if h.publisher == nil {
		return
	}
	snapshot := *alert
	base := context.WithoutCancel(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		pubCtx, cancel := context.WithTimeout(base, h.cfg.PublishTimeout)
		defer cancel()
		if err := h.publisher.PublishAlert(pubCtx, &snapshot); err != nil {
			logging.CtxWarn(pubCtx).Err(err).Int64("alert_id", snapshot.ID).Msg("alert fan-out failed")
		}
	}()
}

// Wait blocks until background pushes and publishes have finished.
func (h *SessionHandler) Wait() {
	h.wg.Wait()
}

// Stats returns a copy of the handler counters.
func (h *SessionHandler) Stats() SessionStats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.stats
}

func (h *SessionHandler) updateStats(fn func(*SessionStats)) {
	h.statsMu.Lock()
	fn(&h.stats)
	h.statsMu.Unlock()
}

func truncateSample(batch EventBatch, limit int) []PointerEvent {
	n := len(batch)
	if n > limit {
		n = limit
	}
	sample := make([]PointerEvent, n)
	copy(sample, batch[:n])
	return sample
}
