// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package detection

import (
	"sort"
	"sync"
	"time"
)

// DefaultSuspicionTTL is how long an identity stays suspicious when no
// explicit TTL is given.
const DefaultSuspicionTTL = 5 * time.Minute

// Clock abstracts time for the registry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SuspicionEntry is one tracked identity.
type SuspicionEntry struct {
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Registry tracks identities flagged as suspicious, each with an expiry.
// Expired entries are evicted when read. All methods are safe for
// concurrent use and the last write for an identity wins.
type Registry struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	clock      Clock
	defaultTTL time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock replaces the wall clock.
func WithClock(c Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithDefaultTTL overrides DefaultSuspicionTTL.
func WithDefaultTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.defaultTTL = ttl
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:    make(map[string]time.Time),
		clock:      systemClock{},
		defaultTTL: DefaultSuspicionTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MarkSuspicious flags identity until now+ttl, replacing any existing entry.
// A ttl of zero or less uses the registry default. An empty identity is
// ignored.
func (r *Registry) MarkSuspicious(identity string, ttl time.Duration) {
	if identity == "" {
		return
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	r.mu.Lock()
	r.entries[identity] = r.clock.Now().Add(ttl)
	r.mu.Unlock()
}

// IsSuspicious reports whether identity has an unexpired entry. An expired
// entry is removed before returning false.
func (r *Registry) IsSuspicious(identity string) bool {
	if identity == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt, ok := r.entries[identity]
	if !ok {
		return false
	}
	if r.clock.Now().After(expiresAt) {
		delete(r.entries, identity)
		return false
	}
	return true
}

// ClearSuspicion removes identity. Clearing an absent identity is a no-op.
func (r *Registry) ClearSuspicion(identity string) {
	r.mu.Lock()
	delete(r.entries, identity)
	r.mu.Unlock()
}

// Len returns the number of tracked entries, expired ones included until
// they are next read.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot lists unexpired entries ordered by expiry, soonest first.
// It does not evict.
func (r *Registry) Snapshot() []SuspicionEntry {
	r.mu.Lock()
	now := r.clock.Now()
	out := make([]SuspicionEntry, 0, len(r.entries))
	for identity, expiresAt := range r.entries {
		if now.After(expiresAt) {
			continue
		}
		out = append(out, SuspicionEntry{Identity: identity, ExpiresAt: expiresAt})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].Identity < out[j].Identity
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}

// expiry returns the stored expiry for identity without evicting.
func (r *Registry) expiry(identity string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.entries[identity]
	return t, ok
}
