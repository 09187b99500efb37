package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

const employeeColumns = `
	employee_id, principal_id, email, first_name, last_name,
	role, job_title, department_id, manager_id::text, tenant_label,
	is_active, created_at, updated_at`

// DirectoryStore implements store.DirectoryStore using PostgreSQL.
type DirectoryStore struct {
	pool *pgxpool.Pool
}

// NewDirectoryStore creates a new PostgreSQL-backed directory store.
// It shares the connection pool with other stores.
func NewDirectoryStore(pool *pgxpool.Pool) *DirectoryStore {
	return &DirectoryStore{
		pool: pool,
	}
}

// CreateEmployee inserts a new employee record in a single statement.
// Reference and uniqueness checks are enforced by the schema.
func (s *DirectoryStore) CreateEmployee(ctx context.Context, employee *models.EmployeeRecord) error {
	var managerID any
	if employee.ManagerID != nil {
		id, err := uuid.Parse(*employee.ManagerID)
		if err != nil {
			// Not a UUID, so it cannot reference an employee
			return fmt.Errorf("%w: %q", store.ErrUnknownManager, *employee.ManagerID)
		}
		managerID = id
	}

	employeeID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate employee ID: %w", err)
	}

	now := time.Now()

	query := `
		INSERT INTO employees (
			employee_id, principal_id, email, first_name, last_name,
			role, job_title, department_id, manager_id, tenant_label,
			is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err = s.pool.Exec(ctx, query,
		employeeID,
		employee.PrincipalID,
		employee.Email,
		employee.FirstName,
		employee.LastName,
		string(employee.Role),
		employee.JobTitle,
		employee.Department,
		managerID,
		employee.TenantLabel,
		employee.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", mapPostgresError(err))
	}

	employee.EmployeeID = employeeID
	employee.CreatedAt = now
	employee.UpdatedAt = now

	log.Debug().
		Str("employee_id", employeeID.String()).
		Str("principal_id", employee.PrincipalID).
		Str("tenant_label", employee.TenantLabel).
		Msg("Created employee")

	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *DirectoryStore) GetEmployee(ctx context.Context, employeeID uuid.UUID) (*models.EmployeeRecord, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_id = $1`

	employee, err := scanEmployee(s.pool.QueryRow(ctx, query, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", mapPostgresError(err))
	}

	return employee, nil
}

// GetEmployeeByEmail retrieves an employee by case-insensitive email within a tenant.
func (s *DirectoryStore) GetEmployeeByEmail(ctx context.Context, tenantLabel, email string) (*models.EmployeeRecord, error) {
	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE tenant_label = $1 AND lower(email) = $2`

	employee, err := scanEmployee(s.pool.QueryRow(ctx, query, tenantLabel, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee by email: %w", mapPostgresError(err))
	}

	return employee, nil
}

// ListEmployees returns all employees in a tenant, newest first.
func (s *DirectoryStore) ListEmployees(ctx context.Context, tenantLabel string) ([]*models.EmployeeRecord, error) {
	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE tenant_label = $1
		ORDER BY created_at DESC, employee_id DESC`

	rows, err := s.pool.Query(ctx, query, tenantLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var employees []*models.EmployeeRecord
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, employee)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}

	return employees, nil
}

// CreateDepartment creates a department.
func (s *DirectoryStore) CreateDepartment(ctx context.Context, department *models.Department) error {
	if department.CreatedAt.IsZero() {
		department.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO departments (tenant_label, department_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		department.TenantLabel,
		department.DepartmentID,
		department.Name,
		department.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDepartmentAlreadyExists
		}
		return fmt.Errorf("failed to create department: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("department_id", department.DepartmentID).
		Str("tenant_label", department.TenantLabel).
		Msg("Created department")

	return nil
}

func scanEmployee(row pgx.Row) (*models.EmployeeRecord, error) {
	var (
		e    models.EmployeeRecord
		role string
	)
	err := row.Scan(
		&e.EmployeeID,
		&e.PrincipalID,
		&e.Email,
		&e.FirstName,
		&e.LastName,
		&role,
		&e.JobTitle,
		&e.Department,
		&e.ManagerID,
		&e.TenantLabel,
		&e.IsActive,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Role = models.Role(role)
	return &e, nil
}
