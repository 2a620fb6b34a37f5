// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package decoy

// Decision is the outcome of Policy.Decide.
type Decision int

const (
	// Deny rejects an unprivileged, unflagged caller with 403.
	Deny Decision = iota
	// Real passes the request to the real handler.
	Real
	// Decoy serves fabricated or honeytoken content.
	Decoy
)

func (d Decision) String() string {
	switch d {
	case Real:
		return "real"
	case Decoy:
		return "decoy"
	default:
		return "deny"
	}
}

// Resource names a protected route family.
type Resource string

const (
	ResourceDocuments Resource = "documents"
	ResourceDocument  Resource = "document"
	ResourceDownload  Resource = "download"
	ResourceAlerts    Resource = "alerts"
	ResourceGeneric   Resource = "generic"
)

// Overrides carries per-request signals that flag a caller regardless of
// suspicion state.
type Overrides struct {
	ForceDecoy                bool
	UnauthenticatedOrTampered bool
}

// SuspicionChecker is satisfied by detection.Registry.
type SuspicionChecker interface {
	IsSuspicious(identity string) bool
}

// RoleAuthorizer decides whether role sees the real view of resource.
type RoleAuthorizer interface {
	IsPrivileged(role, resource string) bool
}

// AdminRole is the privileged role when no RoleAuthorizer is configured.
const AdminRole = "admin"

// Policy implements the real/decoy/deny decision.
type Policy struct {
	suspicion  SuspicionChecker
	authorizer RoleAuthorizer
}

// NewPolicy returns a Policy. authorizer may be nil, in which case only
// AdminRole is privileged.
func NewPolicy(suspicion SuspicionChecker, authorizer RoleAuthorizer) *Policy {
	return &Policy{suspicion: suspicion, authorizer: authorizer}
}

// Decide applies the policy for the generic resource.
func (p *Policy) Decide(identity, role string, flags Overrides) Decision {
	return p.DecideFor(ResourceGeneric, identity, role, flags)
}

// DecideFor applies the policy for resource.
func (p *Policy) DecideFor(resource Resource, identity, role string, flags Overrides) Decision {
	if p.privileged(role, resource) {
		return Real
	}
	if p.flagged(identity, flags) {
		return Decoy
	}
	return Deny
}

func (p *Policy) privileged(role string, resource Resource) bool {
	if role == "" {
		return false
	}
	if p.authorizer == nil {
		return role == AdminRole
	}
	return p.authorizer.IsPrivileged(role, string(resource))
}

func (p *Policy) flagged(identity string, flags Overrides) bool {
	if flags.ForceDecoy || flags.UnauthenticatedOrTampered {
		return true
	}
	return p.suspicion != nil && identity != "" && p.suspicion.IsSuspicious(identity)
}
