// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package honeytoken

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
)

// InventoryRecord is the registration payload for one honeytoken.
type InventoryRecord struct {
	UUID         string                 `json:"uuid"`
	FilePath     string                 `json:"file_path"`
	PDFPath      string                 `json:"pdf_path"`
	DocumentName string                 `json:"document_name"`
	CreatedAt    string                 `json:"created_at"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Inventory is the remote registry that maps honeytokens to documents for
// beacon attribution.
type Inventory interface {
	Register(ctx context.Context, records []InventoryRecord) error

	// Deregister hard-deletes token. It returns ErrRemoteUnsupported when
	// the inventory does not implement deletion.
	Deregister(ctx context.Context, token string) error

	// MarkDeleted re-registers record flagged as deleted, for inventories
	// that cannot hard-delete.
	MarkDeleted(ctx context.Context, record InventoryRecord) error

	Verify(ctx context.Context, token string) (bool, error)
}

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 512

// InventoryClient talks to the inventory HTTP API. Each call is retried
// per RetryPolicy and guarded by a circuit breaker.
type InventoryClient struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[interface{}]
	policy  RetryPolicy
	name    string
}

// NewInventoryClient creates a client for baseURL.
func NewInventoryClient(baseURL string, policy RetryPolicy) *InventoryClient {
	policy = policy.normalized()
	cbName := "honeytoken-inventory"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		// Opens after 5 consecutive transient failures.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},

		// 4xx answers mean the inventory is up; they do not count against it.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
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

	return &InventoryClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		cb:      cb,
		policy:  policy,
		name:    cbName,
	}
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

// Register posts records to /api/documents/create.
func (c *InventoryClient) Register(ctx context.Context, records []InventoryRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: encode inventory records: %v", ErrPermanent, err)
	}

	err = c.call(ctx, "register", func(ctx context.Context) error {
		_, err := c.do(ctx, "register", http.MethodPost, "/api/documents/create", body)
		return err
	})
	metrics.RecordInventoryCall("register", err)
	return err
}

// Deregister deletes token via DELETE /api/documents/{uuid}. A 404 means
// the token is already gone.
func (c *InventoryClient) Deregister(ctx context.Context, token string) error {
	err := c.call(ctx, "deregister", func(ctx context.Context) error {
		status, err := c.do(ctx, "deregister", http.MethodDelete, "/api/documents/"+url.PathEscape(token), nil)
		if status == http.StatusNotFound {
			return nil
		}
		if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
			return fmt.Errorf("%w: %v", ErrRemoteUnsupported, err)
		}
		return err
	})
	metrics.RecordInventoryCall("deregister", err)
	return err
}

// MarkDeleted re-registers record with metadata.deleted=true.
func (c *InventoryClient) MarkDeleted(ctx context.Context, record InventoryRecord) error {
	if record.Metadata == nil {
		record.Metadata = make(map[string]interface{}, 1)
	}
	record.Metadata["deleted"] = true
	record.FilePath = ""

	body, err := json.Marshal([]InventoryRecord{record})
	if err != nil {
		return fmt.Errorf("%w: encode inventory record: %v", ErrPermanent, err)
	}

	err = c.call(ctx, "mark_deleted", func(ctx context.Context) error {
		_, err := c.do(ctx, "mark_deleted", http.MethodPost, "/api/documents/create", body)
		return err
	})
	metrics.RecordInventoryCall("mark_deleted", err)
	return err
}

// Verify reports whether the inventory knows token.
func (c *InventoryClient) Verify(ctx context.Context, token string) (bool, error) {
	var found bool
	err := c.call(ctx, "verify", func(ctx context.Context) error {
		status, err := c.do(ctx, "verify", http.MethodGet, "/api/documents/"+url.PathEscape(token), nil)
		switch {
		case status == http.StatusNotFound:
			found = false
			return nil
		case err != nil:
			return err
		default:
			found = true
			return nil
		}
	})
	metrics.RecordInventoryCall("verify", err)
	return found, err
}

// call runs fn under the retry policy, each attempt through the breaker.
func (c *InventoryClient) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return c.policy.Do(ctx, op, func(ctx context.Context) error {
		_, err := c.cb.Execute(func() (interface{}, error) {
			return nil, fn(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Str("operation", op).Msg("[CIRCUIT BREAKER] Request rejected")
		}
		return err
	})
}

// do performs one request. It returns the status code (0 when no response
// was received) and a *StatusError for non-2xx answers.
func (c *InventoryClient) do(ctx context.Context, op, method, path string, body []byte) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
