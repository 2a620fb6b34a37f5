// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package detection

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrEmptyBatch is returned when a session submits a batch with no events.
	ErrEmptyBatch = errors.New("detection: empty event batch")

	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("detection: alert not found")

	// ErrInvalidStatus is returned for an unknown alert status.
	ErrInvalidStatus = errors.New("detection: invalid alert status")
)

const (
	// AnomalyScore is the score attached to an anomalous verdict.
	AnomalyScore = 0.99

	// AlertThreshold is the reporting threshold recorded on every alert.
	AlertThreshold = 0.8

	// UnknownIdentity is used when a session carries no identity.
	UnknownIdentity = "unknown"
)

// EventKind identifies the pointer action a collector observed.
type EventKind string

const (
	EventMovement     EventKind = "movement"
	EventPressLeft    EventKind = "press-left"
	EventPressRight   EventKind = "press-right"
	EventReleaseLeft  EventKind = "release-left"
	EventReleaseRight EventKind = "release-right"
	EventScrollUp     EventKind = "scroll-up"
	EventScrollDown   EventKind = "scroll-down"
)

// PointerEvent is a single pointer sample as sent by the browser collector.
// EpochMillis is nil when the collector did not attach a numeric epoch;
// such events are ignored by the timing analysis.
type PointerEvent struct {
	Kind        EventKind `json:"eventType"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	OccurredAt  string    `json:"timestamp,omitempty"`
	EpochMillis *int64    `json:"epoch,omitempty"`
	StreamID    string    `json:"movementId,omitempty"`
}

// EventBatch is an ordered run of pointer events from one session.
type EventBatch []PointerEvent

// AnomalyVerdict is the outcome of scoring one batch.
type AnomalyVerdict struct {
	IsAnomalous   bool    `json:"is_anomalous"`
	Score         float64 `json:"score"`
	MeanDeltaMs   float64 `json:"mean_delta_ms"`
	StddevDeltaMs float64 `json:"stddev_delta_ms"`
	SampleSize    int     `json:"sample_size"`
}

// AlertStatus tracks analyst triage of an alert.
type AlertStatus string

const (
	StatusDetected      AlertStatus = "detected"
	StatusInvestigating AlertStatus = "investigating"
	StatusResolved      AlertStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s AlertStatus) Valid() bool {
	switch s {
	case StatusDetected, StatusInvestigating, StatusResolved:
		return true
	}
	return false
}

// ParseStatus converts a string to an AlertStatus.
func ParseStatus(s string) (AlertStatus, error) {
	status := AlertStatus(s)
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Alert is the persisted record of an anomalous batch.
type Alert struct {
	ID           int64          `json:"id"`
	Identity     string         `json:"username"`
	AnomalyScore float64        `json:"anomaly_score"`
	Threshold    float64        `json:"threshold"`
	SampleEvents []PointerEvent `json:"sample_events,omitempty"`
	SessionID    string         `json:"session_id"`
	Status       AlertStatus    `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AlertFilter narrows an alert listing. Results are always newest first.
type AlertFilter struct {
	Identity string        `json:"identity,omitempty"`
	Statuses []AlertStatus `json:"statuses,omitempty"`
	Limit    int           `json:"limit,omitempty"`
	Offset   int           `json:"offset,omitempty"`
}

// AlertSink persists and queries alerts.
type AlertSink interface {
	// Write stores a new alert and assigns its ID.
	Write(ctx context.Context, alert *Alert) error

	// Get returns ErrAlertNotFound when id does not exist.
	Get(ctx context.Context, id int64) (*Alert, error)

	// List returns alerts matching filter, newest first.
	List(ctx context.Context, filter AlertFilter) ([]Alert, error)

	// UpdateStatus changes an alert's triage status.
	UpdateStatus(ctx context.Context, id int64, status AlertStatus) (*Alert, error)
}
