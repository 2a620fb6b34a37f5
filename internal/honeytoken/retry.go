// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package honeytoken

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
)

// RetryPolicy bounds retries of remote inventory calls.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int

	// BackoffBase is the delay before the second attempt. It doubles on
	// each further attempt up to MaxBackoff.
	BackoffBase time.Duration
	MaxBackoff  time.Duration

	// AttemptTimeout bounds each attempt.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns 3 attempts, 200ms exponential backoff and a 5s
// per-attempt timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BackoffBase:    200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		AttemptTimeout: 5 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	if p.MaxBackoff < p.BackoffBase {
		p.MaxBackoff = p.BackoffBase * 8
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	return p
}

// Backoff returns the wait before attempt (1-based, attempt >= 2).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 2 {
		return 0
	}
	delay := p.BackoffBase << uint(attempt-2)
	if delay > p.MaxBackoff || delay <= 0 {
		delay = p.MaxBackoff
	}
	return delay
}

// Do runs fn until it succeeds, returns a non-transient error, or the
// attempts are exhausted. Each attempt gets its own timeout.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.Backoff(attempt)
			metrics.RecordInventoryRetry(op)
			logging.Debug().
				Str("operation", op).
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(lastErr).
				Msg("Retrying inventory call")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-timer.C:
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return err
		}
	}
	return fmt.Errorf("%s: all %d attempts failed: %w", op, p.MaxAttempts, lastErr)
}

// StatusError is a non-2xx inventory response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: inventory returned %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: inventory returned %d", e.Op, e.StatusCode)
}

// IsTransient reports whether err is worth retrying: 5xx responses,
// network failures and attempt timeouts. 4xx responses never are.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrPermanent) || errors.Is(err, ErrRemoteUnsupported) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
