package models

import (
	"time"
)

// Principal represents a login-capable identity owned by the identity service.
// Credential material never leaves the identity service, only the opaque ID does.
type Principal struct {
	PrincipalID string // Opaque, generated by the identity service
	Email       string
	Metadata    PrincipalMetadata
	CreatedAt   time.Time
}

// PrincipalMetadata is stamped on the principal at creation so the identity
// service's view of the user is self-describing even without a directory record.
type PrincipalMetadata struct {
	Role        Role   `json:"role"`
	TenantLabel string `json:"tenant_label"`
	DisplayName string `json:"display_name"`
}
