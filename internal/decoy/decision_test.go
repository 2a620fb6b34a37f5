// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package decoy

import "testing"

type staticSuspicion map[string]bool

func (s staticSuspicion) IsSuspicious(identity string) bool { return s[identity] }

type roleTable map[string]bool

func (t roleTable) IsPrivileged(role, resource string) bool { return t[role+"/"+resource] }

func TestPolicy_Decide(t *testing.T) {
	t.Parallel()

	p := NewPolicy(staticSuspicion{"mallory": true}, nil)

	tests := []struct {
		name     string
		identity string
		role     string
		flags    Overrides
		want     Decision
	}{
		{"admin gets real", "root", "admin", Overrides{}, Real},
		{"suspicious admin still real", "mallory", "admin", Overrides{}, Real},
		{"admin with force flag still real", "root", "admin", Overrides{ForceDecoy: true}, Real},
		{"plain user denied", "bob", "user", Overrides{}, Deny},
		{"suspicious user decoy", "mallory", "user", Overrides{}, Decoy},
		{"force decoy", "bob", "user", Overrides{ForceDecoy: true}, Decoy},
		{"unauthenticated", "", "", Overrides{UnauthenticatedOrTampered: true}, Decoy},
		{"unauthenticated claiming admin name", "root", "", Overrides{UnauthenticatedOrTampered: true}, Decoy},
		{"empty identity not suspicious", "", "user", Overrides{}, Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := p.Decide(tt.identity, tt.role, tt.flags); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_DecideForUsesAuthorizer(t *testing.T) {
	t.Parallel()

	p := NewPolicy(staticSuspicion{}, roleTable{"auditor/alerts": true})

	if got := p.DecideFor(ResourceAlerts, "ann", "auditor", Overrides{}); got != Real {
		t.Errorf("auditor on alerts = %v, want real", got)
	}
	if got := p.DecideFor(ResourceDocuments, "ann", "auditor", Overrides{}); got != Deny {
		t.Errorf("auditor on documents = %v, want deny", got)
	}
	if got := p.DecideFor(ResourceDocuments, "root", "admin", Overrides{}); got != Deny {
		t.Errorf("admin without policy rule = %v, want deny", got)
	}
}

func TestPolicy_NilSuspicion(t *testing.T) {
	t.Parallel()

	p := NewPolicy(nil, nil)
	if got := p.Decide("bob", "user", Overrides{}); got != Deny {
		t.Errorf("Decide() = %v, want deny", got)
	}
}

func TestDecision_String(t *testing.T) {
	t.Parallel()

	for d, want := range map[Decision]string{Real: "real", Decoy: "decoy", Deny: "deny", Decision(9): "deny"} {
		if got := d.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", d, got, want)
		}
	}
}
