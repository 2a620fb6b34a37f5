// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package detection

import (
	"context"
	"errors"
	"testing"
	"time"
)

// setupTestStore opens an in-memory DuckDB store with the schema applied.
func setupTestStore(t *testing.T) *DuckDBStore {
	t.Helper()
	store, err := OpenDuckDBStore(context.Background(), "")
	if err != nil {
		t.Fatalf("OpenDuckDBStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func saveTestAlerts(ctx context.Context, t *testing.T, store *DuckDBStore, alerts []*Alert) {
	t.Helper()
	for _, alert := range alerts {
		if err := store.Write(ctx, alert); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
}

func TestDuckDBStore_WriteAndGet(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	alert := &Alert{
		Identity:     "alice",
		AnomalyScore: AnomalyScore,
		Threshold:    AlertThreshold,
		SampleEvents: regularBatch(3, 50),
		SessionID:    "sess-1",
	}
	if err := store.Write(ctx, alert); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if alert.ID == 0 {
		t.Fatal("Write() did not assign an ID")
	}
	if alert.Status != StatusDetected {
		t.Errorf("default status = %q, want detected", alert.Status)
	}

	got, err := store.Get(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Identity != "alice" || got.SessionID != "sess-1" {
		t.Errorf("Get() = %+v", got)
	}
	if len(got.SampleEvents) != 3 {
		t.Fatalf("sample events = %d, want 3", len(got.SampleEvents))
	}
	if got.SampleEvents[2].EpochMillis == nil || *got.SampleEvents[2].EpochMillis != *alert.SampleEvents[2].EpochMillis {
		t.Error("sample event epoch did not round-trip")
	}
	if got.CreatedAt.Sub(alert.CreatedAt).Abs() > time.Millisecond {
		t.Errorf("CreatedAt = %v, want ~%v", got.CreatedAt, alert.CreatedAt)
	}
}

func TestDuckDBStore_GetNotFound(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	if _, err := store.Get(context.Background(), 9999); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("Get() error = %v, want ErrAlertNotFound", err)
	}
}

func TestDuckDBStore_ListNewestFirst(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	saveTestAlerts(ctx, t, store, []*Alert{
		{Identity: "alice", AnomalyScore: 0.99, Threshold: 0.8, CreatedAt: base},
		{Identity: "bob", AnomalyScore: 0.99, Threshold: 0.8, CreatedAt: base.Add(time.Minute)},
		{Identity: "alice", AnomalyScore: 0.99, Threshold: 0.8, CreatedAt: base.Add(2 * time.Minute)},
	})

	alerts, err := store.List(ctx, AlertFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("List() len = %d, want 3", len(alerts))
	}
	for i := 1; i < len(alerts); i++ {
		if alerts[i].CreatedAt.After(alerts[i-1].CreatedAt) {
			t.Errorf("alerts not newest first at index %d", i)
		}
	}
}

func TestDuckDBStore_ListFilters(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	alerts := []*Alert{
		{Identity: "alice", AnomalyScore: 0.99, Threshold: 0.8},
		{Identity: "bob", AnomalyScore: 0.99, Threshold: 0.8},
		{Identity: "alice", AnomalyScore: 0.99, Threshold: 0.8},
	}
	saveTestAlerts(ctx, t, store, alerts)
	if _, err := store.UpdateStatus(ctx, alerts[2].ID, StatusResolved); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	tests := []struct {
		name   string
		filter AlertFilter
		want   int
	}{
		{"no filter", AlertFilter{}, 3},
		{"by identity", AlertFilter{Identity: "alice"}, 2},
		{"by status", AlertFilter{Statuses: []AlertStatus{StatusResolved}}, 1},
		{"by identity and status", AlertFilter{Identity: "alice", Statuses: []AlertStatus{StatusDetected}}, 1},
		{"multiple statuses", AlertFilter{Statuses: []AlertStatus{StatusDetected, StatusResolved}}, 3},
		{"limit", AlertFilter{Limit: 2}, 2},
		{"offset", AlertFilter{Limit: 10, Offset: 2}, 1},
		{"unknown identity", AlertFilter{Identity: "mallory"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() len = %d, want %d", len(got), tt.want)
			}
		})
	}

	count, err := store.Count(ctx, AlertFilter{Identity: "alice", Limit: 1})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestDuckDBStore_UpdateStatus(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	alert := &Alert{Identity: "alice", AnomalyScore: 0.99, Threshold: 0.8}
	saveTestAlerts(ctx, t, store, []*Alert{alert})

	updated, err := store.UpdateStatus(ctx, alert.ID, StatusInvestigating)
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if updated.Status != StatusInvestigating {
		t.Errorf("status = %q, want investigating", updated.Status)
	}

	if _, err := store.UpdateStatus(ctx, alert.ID, AlertStatus("closed")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("invalid status error = %v, want ErrInvalidStatus", err)
	}
	if _, err := store.UpdateStatus(ctx, 424242, StatusResolved); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("missing alert error = %v, want ErrAlertNotFound", err)
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    AlertStatus
		wantErr bool
	}{
		{"detected", StatusDetected, false},
		{"investigating", StatusInvestigating, false},
		{"resolved", StatusResolved, false},
		{"", "", true},
		{"DETECTED", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestBuildPlaceholders(t *testing.T) {
	t.Parallel()

	tests := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range tests {
		if got := buildPlaceholders(n); got != want {
			t.Errorf("buildPlaceholders(%d) = %q, want %q", n, got, want)
		}
	}
}
