package models

import (
	"time"
)

// Department represents an organisational unit within a tenant.
// Employee records reference departments by ID.
type Department struct {
	DepartmentID string
	TenantLabel  string
	Name         string
	CreatedAt    time.Time
}
