package models

import (
	"strings"
	"time"
)

const unconfirmedPrefix = "unconfirmed:"

// OrphanedPrincipal records a principal that was left behind in the identity
// service after a failed directory write whose compensation also failed.
// These require operator intervention.
//
// A create call that timed out may or may not have committed. Those are
// recorded under UnconfirmedPrincipalID because the real id was never seen.
type OrphanedPrincipal struct {
	PrincipalID string     `json:"principal_id"`
	Email       string     `json:"email"`
	TenantLabel string     `json:"tenant_label"`
	Reason      string     `json:"reason"`
	RecordedAt  time.Time  `json:"recorded_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// IsResolved returns true once an operator has cleaned up the principal.
func (o *OrphanedPrincipal) IsResolved() bool {
	return o.ResolvedAt != nil
}

// IsUnconfirmed reports whether the principal id was never returned by the
// identity service and the operator must look the principal up by email.
func (o *OrphanedPrincipal) IsUnconfirmed() bool {
	return strings.HasPrefix(o.PrincipalID, unconfirmedPrefix)
}

// UnconfirmedPrincipalID is the placeholder id for a principal that may
// exist in the identity service but whose id is unknown.
func UnconfirmedPrincipalID(tenantLabel, email string) string {
	return unconfirmedPrefix + tenantLabel + "/" + email
}
