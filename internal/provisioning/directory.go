package provisioning

import (
	"context"
	"time"

	"github.com/wolfeidau/peopleops/internal/models"
)

// EmployeeStore is the part of the directory store the saga writes to.
type EmployeeStore interface {
	CreateEmployee(ctx context.Context, employee *models.EmployeeRecord) error
}

// DirectoryWriter inserts the employee record linked to a new principal.
type DirectoryWriter struct {
	store       EmployeeStore
	stepTimeout time.Duration
}

// NewDirectoryWriter creates a writer.
func NewDirectoryWriter(employees EmployeeStore, stepTimeout time.Duration) *DirectoryWriter {
	return &DirectoryWriter{store: employees, stepTimeout: stepTimeout}
}

// Write inserts exactly one active employee record for the principal. The
// insert is never retried. Any failure is a *DirectoryWriteError.
func (w *DirectoryWriter) Write(ctx context.Context, principal *models.Principal, req *Request) (*models.EmployeeRecord, error) {
	if principal.Metadata.TenantLabel != req.TenantLabel {
		return nil, &DirectoryWriteError{Err: ErrTenantMismatch}
	}

	jobTitle := req.JobTitle
	if jobTitle == "" {
		jobTitle = models.DefaultJobTitle
	}

	employee := &models.EmployeeRecord{
		PrincipalID: principal.PrincipalID,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        req.Role,
		JobTitle:    jobTitle,
		Department:  req.Department,
		ManagerID:   req.ManagerID,
		TenantLabel: req.TenantLabel,
		IsActive:    true,
	}

	ctx, cancel := context.WithTimeout(ctx, w.stepTimeout)
	defer cancel()

	if err := w.store.CreateEmployee(ctx, employee); err != nil {
		return nil, &DirectoryWriteError{Err: err}
	}

	return employee, nil
}
