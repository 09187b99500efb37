package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultJobTitle is applied when a provisioning request omits a job title.
const DefaultJobTitle = "Staff"

// EmployeeRecord is the HR record held by the directory store.
// PrincipalID must reference an existing Principal in the identity service.
type EmployeeRecord struct {
	EmployeeID  uuid.UUID `json:"id"` // UUIDv7, assigned by the store
	PrincipalID string    `json:"user_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Role        Role      `json:"role"`
	JobTitle    string    `json:"job_title"`
	Department  *string   `json:"department"` // FK to departments, nullable
	ManagerID   *string   `json:"manager_id"` // FK to employees, nullable
	TenantLabel string    `json:"tenant_label"`
	IsActive    bool      `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name the way the directory displays it.
func (e *EmployeeRecord) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}
