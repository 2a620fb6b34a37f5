// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package detection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver
	"github.com/goccy/go-json"

	"github.com/tomtom215/decoyshield/internal/logging"
)

// inMemoryDSN opens a private in-memory DuckDB database.
const inMemoryDSN = ":memory:"

const alertSelectColumns = `id, identity, anomaly_score, threshold, sample_events, session_id, status, created_at`

// DuckDBStore implements AlertSink using DuckDB.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore wraps an open database. Call InitSchema before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// OpenDuckDBStore opens path (empty for in-memory) and initializes the schema.
func OpenDuckDBStore(ctx context.Context, path string) (*DuckDBStore, error) {
	dsn := path
	if dsn == "" {
		dsn = inMemoryDSN
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert database: %w", err)
	}
	store := NewDuckDBStore(db)
	if err := store.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity for health reporting.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InitSchema creates the alert table if it doesn't exist.
func (s *DuckDBStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS ids_alerts_id_seq`,
		`CREATE TABLE IF NOT EXISTS ids_alerts (
			id BIGINT PRIMARY KEY DEFAULT nextval('ids_alerts_id_seq'),
			identity TEXT NOT NULL,
			anomaly_score DOUBLE NOT NULL,
			threshold DOUBLE NOT NULL,
			sample_events TEXT,
			session_id TEXT,
			status TEXT NOT NULL DEFAULT 'detected',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ids_alerts_identity ON ids_alerts(identity)`,
		`CREATE INDEX IF NOT EXISTS idx_ids_alerts_created_at ON ids_alerts(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	// Flush the WAL so a restart does not replay schema creation.
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after alert schema initialization")
	}
	return nil
}

// scanAlertRow scans one alert row, decoding the sample events column.
func scanAlertRow(scanner interface {
	Scan(dest ...interface{}) error
}, alert *Alert) error {
	var sample, sessionID sql.NullString
	var status string

	if err := scanner.Scan(
		&alert.ID,
		&alert.Identity,
		&alert.AnomalyScore,
		&alert.Threshold,
		&sample,
		&sessionID,
		&status,
		&alert.CreatedAt,
	); err != nil {
		return err
	}

	alert.Status = AlertStatus(status)
	if sessionID.Valid {
		alert.SessionID = sessionID.String
	}
	if sample.Valid && sample.String != "" {
		if err := json.Unmarshal([]byte(sample.String), &alert.SampleEvents); err != nil {
			return fmt.Errorf("failed to decode sample events: %w", err)
		}
	}
	return nil
}

// Write persists a new alert and sets its ID.
func (s *DuckDBStore) Write(ctx context.Context, alert *Alert) error {
	if alert.Status == "" {
		alert.Status = StatusDetected
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	var sample []byte
	if len(alert.SampleEvents) > 0 {
		encoded, err := json.Marshal(alert.SampleEvents)
		if err != nil {
			return fmt.Errorf("failed to encode sample events: %w", err)
		}
		sample = encoded
	}

	// DuckDB doesn't support LastInsertId with sequences
	query := `INSERT INTO ids_alerts
		(identity, anomaly_score, threshold, sample_events, session_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		alert.Identity,
		alert.AnomalyScore,
		alert.Threshold,
		string(sample),
		alert.SessionID,
		string(alert.Status),
		alert.CreatedAt,
	).Scan(&alert.ID)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// Get retrieves an alert by ID.
func (s *DuckDBStore) Get(ctx context.Context, id int64) (*Alert, error) {
	query := `SELECT ` + alertSelectColumns + ` FROM ids_alerts WHERE id = ?`

	alert := &Alert{}
	err := scanAlertRow(s.db.QueryRowContext(ctx, query, id), alert)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// UpdateStatus changes an alert's status and returns the updated row.
func (s *DuckDBStore) UpdateStatus(ctx context.Context, id int64, status AlertStatus) (*Alert, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	query := `UPDATE ids_alerts SET status = ? WHERE id = ? RETURNING ` + alertSelectColumns

	alert := &Alert{}
	err := scanAlertRow(s.db.QueryRowContext(ctx, query, string(status), id), alert)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update alert status: %w", err)
	}
	return alert, nil
}

// List retrieves alerts newest first.
// All user values are bound parameters; the ORDER BY clause is fixed.
func (s *DuckDBStore) List(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	query, args := s.buildAlertQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return s.scanAlerts(rows)
}

// Count returns the number of alerts matching filter, ignoring pagination.
func (s *DuckDBStore) Count(ctx context.Context, filter AlertFilter) (int, error) {
	query, args := s.applyAlertFilters(`SELECT COUNT(*) FROM ids_alerts WHERE 1=1`, nil, filter)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

func (s *DuckDBStore) buildAlertQuery(filter AlertFilter) (string, []interface{}) {
	query := `SELECT ` + alertSelectColumns + ` FROM ids_alerts WHERE 1=1`
	args := make([]interface{}, 0)

	query, args = s.applyAlertFilters(query, args, filter)
	query += " ORDER BY created_at DESC, id DESC"
	query, args = s.applyAlertPagination(query, args, filter)

	return query, args
}

func (s *DuckDBStore) applyAlertFilters(query string, args []interface{}, filter AlertFilter) (string, []interface{}) {
	if filter.Identity != "" {
		query += " AND identity = ?"
		args = append(args, filter.Identity)
	}

	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND status IN (%s)", buildPlaceholders(len(filter.Statuses)))
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}

	return query, args
}

func (s *DuckDBStore) applyAlertPagination(query string, args []interface{}, filter AlertFilter) (string, []interface{}) {
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100"
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	return query, args
}

func buildPlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}

func (s *DuckDBStore) scanAlerts(rows *sql.Rows) ([]Alert, error) {
	alerts := make([]Alert, 0)
	for rows.Next() {
		var alert Alert
		if err := scanAlertRow(rows, &alert); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
