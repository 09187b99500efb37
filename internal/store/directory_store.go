package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/peopleops/internal/models"
)

// Sentinel errors for directory store operations
var (
	ErrEmployeeNotFound        = errors.New("employee not found")
	ErrEmployeeAlreadyExists   = errors.New("employee already exists")
	ErrUnknownManager          = errors.New("unknown manager reference")
	ErrUnknownDepartment       = errors.New("unknown department reference")
	ErrDepartmentAlreadyExists = errors.New("department already exists")
)

// DirectoryStore is the system of record for employee HR attributes.
// Every record is scoped to a tenant label.
type DirectoryStore interface {
	// CreateEmployee inserts a new employee record. The store assigns EmployeeID
	// and timestamps. Returns ErrEmployeeAlreadyExists if the email or principal
	// is already present in the tenant, ErrUnknownManager or ErrUnknownDepartment
	// if a reference does not resolve within the tenant.
	CreateEmployee(ctx context.Context, employee *models.EmployeeRecord) error

	// GetEmployee retrieves an employee by ID.
	// Returns ErrEmployeeNotFound if the employee doesn't exist.
	GetEmployee(ctx context.Context, employeeID uuid.UUID) (*models.EmployeeRecord, error)

	// GetEmployeeByEmail retrieves an employee by email within a tenant.
	// Email matching is case-insensitive.
	GetEmployeeByEmail(ctx context.Context, tenantLabel, email string) (*models.EmployeeRecord, error)

	// ListEmployees returns all employees in a tenant, newest first.
	ListEmployees(ctx context.Context, tenantLabel string) ([]*models.EmployeeRecord, error)

	// CreateDepartment creates a department employees can reference.
	// Returns ErrDepartmentAlreadyExists on duplicate IDs within a tenant.
	CreateDepartment(ctx context.Context, department *models.Department) error
}
