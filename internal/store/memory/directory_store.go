package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

// DirectoryStore implements store.DirectoryStore using in-memory storage.
// This implementation is for development and testing - data is lost on restart.
type DirectoryStore struct {
	mu sync.RWMutex

	employees   map[uuid.UUID]*models.EmployeeRecord // employee_id -> record
	byEmail     map[string]*models.EmployeeRecord    // tenant/email -> record
	byPrincipal map[string]*models.EmployeeRecord    // tenant/principal_id -> record
	departments map[string]*models.Department        // tenant/department_id -> department
}

// NewDirectoryStore creates a new in-memory directory store.
func NewDirectoryStore() *DirectoryStore {
	return &DirectoryStore{
		employees:   make(map[uuid.UUID]*models.EmployeeRecord),
		byEmail:     make(map[string]*models.EmployeeRecord),
		byPrincipal: make(map[string]*models.EmployeeRecord),
		departments: make(map[string]*models.Department),
	}
}

func tenantKey(tenantLabel, value string) string {
	return tenantLabel + "/" + value
}

// CreateEmployee inserts a new employee record, enforcing the same uniqueness
// and reference constraints as the PostgreSQL schema.
func (s *DirectoryStore) CreateEmployee(ctx context.Context, employee *models.EmployeeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := tenantKey(employee.TenantLabel, strings.ToLower(employee.Email))
	principalKey := tenantKey(employee.TenantLabel, employee.PrincipalID)

	if _, exists := s.byEmail[emailKey]; exists {
		return store.ErrEmployeeAlreadyExists
	}
	if _, exists := s.byPrincipal[principalKey]; exists {
		return store.ErrEmployeeAlreadyExists
	}

	if employee.ManagerID != nil {
		managerID, err := uuid.Parse(*employee.ManagerID)
		if err != nil {
			return store.ErrUnknownManager
		}
		manager, exists := s.employees[managerID]
		if !exists || manager.TenantLabel != employee.TenantLabel {
			return store.ErrUnknownManager
		}
	}

	if employee.Department != nil {
		if _, exists := s.departments[tenantKey(employee.TenantLabel, *employee.Department)]; !exists {
			return store.ErrUnknownDepartment
		}
	}

	employeeID, err := uuid.NewV7()
	if err != nil {
		return err
	}

	now := time.Now()
	employee.EmployeeID = employeeID
	employee.CreatedAt = now
	employee.UpdatedAt = now

	// Clone to avoid external modifications
	clone := cloneEmployee(employee)
	s.employees[employeeID] = clone
	s.byEmail[emailKey] = clone
	s.byPrincipal[principalKey] = clone

	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *DirectoryStore) GetEmployee(ctx context.Context, employeeID uuid.UUID) (*models.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.employees[employeeID]
	if !exists {
		return nil, store.ErrEmployeeNotFound
	}

	return cloneEmployee(employee), nil
}

// GetEmployeeByEmail retrieves an employee by case-insensitive email within a tenant.
func (s *DirectoryStore) GetEmployeeByEmail(ctx context.Context, tenantLabel, email string) (*models.EmployeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.byEmail[tenantKey(tenantLabel, strings.ToLower(email))]
	if !exists {
		return nil, store.ErrEmployeeNotFound
	}

	return cloneEmployee(employee), nil
}

// ListEmployees returns all employees in a tenant, newest first.
func (s *DirectoryStore) ListEmployees(ctx context.Context, tenantLabel string) ([]*models.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.EmployeeRecord
	for _, e := range s.employees {
		if e.TenantLabel != tenantLabel {
			continue
		}
		result = append(result, cloneEmployee(e))
	}

	// UUIDv7 sorts by creation time
	sort.Slice(result, func(i, j int) bool {
		return result[i].EmployeeID.String() > result[j].EmployeeID.String()
	})

	return result, nil
}

// CreateDepartment creates a department in memory.
func (s *DirectoryStore) CreateDepartment(ctx context.Context, department *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tenantKey(department.TenantLabel, department.DepartmentID)
	if _, exists := s.departments[key]; exists {
		return store.ErrDepartmentAlreadyExists
	}

	if department.CreatedAt.IsZero() {
		department.CreatedAt = time.Now()
	}

	clone := *department
	s.departments[key] = &clone

	return nil
}

func cloneEmployee(e *models.EmployeeRecord) *models.EmployeeRecord {
	clone := *e
	if e.Department != nil {
		department := *e.Department
		clone.Department = &department
	}
	if e.ManagerID != nil {
		managerID := *e.ManagerID
		clone.ManagerID = &managerID
	}
	return &clone
}
