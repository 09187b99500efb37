//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString, MinConns: 1})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func ptr(s string) *string { return &s }

func TestIntegration_DirectoryStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	st := NewDirectoryStore(pool)

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, RunMigrations(ctx, pool))
	})

	require.NoError(t, st.CreateDepartment(ctx, &models.Department{DepartmentID: "eng", TenantLabel: "acme", Name: "Engineering"}))

	manager := &models.EmployeeRecord{
		PrincipalID: "principal-manager",
		Email:       "Boss@X.com",
		FirstName:   "Bo",
		LastName:    "Ss",
		Role:        models.RoleManager,
		JobTitle:    models.DefaultJobTitle,
		TenantLabel: "acme",
		IsActive:    true,
	}

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, st.CreateEmployee(ctx, manager))

		got, err := st.GetEmployeeByEmail(ctx, "acme", "boss@x.com")
		require.NoError(t, err)
		require.Equal(t, manager.EmployeeID, got.EmployeeID)
		require.Equal(t, models.RoleManager, got.Role)
		require.Nil(t, got.ManagerID)
		require.Nil(t, got.Department)
	})

	t.Run("references resolve", func(t *testing.T) {
		employee := &models.EmployeeRecord{
			PrincipalID: "principal-ann",
			Email:       "a@x.com",
			FirstName:   "Ann",
			LastName:    "Lee",
			Role:        models.RoleEmployee,
			JobTitle:    models.DefaultJobTitle,
			Department:  ptr("eng"),
			ManagerID:   ptr(manager.EmployeeID.String()),
			TenantLabel: "acme",
			IsActive:    true,
		}
		require.NoError(t, st.CreateEmployee(ctx, employee))

		got, err := st.GetEmployee(ctx, employee.EmployeeID)
		require.NoError(t, err)
		require.Equal(t, "eng", *got.Department)
		require.Equal(t, manager.EmployeeID.String(), *got.ManagerID)
	})

	t.Run("unknown references rejected", func(t *testing.T) {
		employee := &models.EmployeeRecord{
			PrincipalID: "principal-ghost",
			Email:       "g@x.com",
			FirstName:   "G",
			Role:        models.RoleEmployee,
			JobTitle:    models.DefaultJobTitle,
			ManagerID:   ptr("ghost"),
			TenantLabel: "acme",
			IsActive:    true,
		}
		require.ErrorIs(t, st.CreateEmployee(ctx, employee), store.ErrUnknownManager)

		employee.ManagerID = ptr("0199a1b2-0000-7000-8000-000000000000")
		require.ErrorIs(t, st.CreateEmployee(ctx, employee), store.ErrUnknownManager)

		employee.ManagerID = nil
		employee.Department = ptr("sales")
		require.ErrorIs(t, st.CreateEmployee(ctx, employee), store.ErrUnknownDepartment)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		dup := *manager
		dup.PrincipalID = "principal-other"
		dup.Email = "BOSS@x.com"
		require.ErrorIs(t, st.CreateEmployee(ctx, &dup), store.ErrEmployeeAlreadyExists)
	})

	t.Run("list", func(t *testing.T) {
		employees, err := st.ListEmployees(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, employees, 2)
	})
}

func TestIntegration_IdempotencyStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	st := NewIdempotencyStore(pool)
	now := time.Now()

	record := &store.IdempotencyRecord{Key: "k1", Fingerprint: "fp", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	_, err := st.Reserve(ctx, record)
	require.NoError(t, err)

	existing, err := st.Reserve(ctx, record)
	require.ErrorIs(t, err, store.ErrIdempotencyKeyExists)
	require.Equal(t, store.IdempotencyStatePending, existing.State)

	require.NoError(t, st.Complete(ctx, "k1", []byte(`{"ok":true}`)))
	existing, err = st.Reserve(ctx, record)
	require.ErrorIs(t, err, store.ErrIdempotencyKeyExists)
	require.Equal(t, store.IdempotencyStateCompleted, existing.State)

	require.NoError(t, st.Release(ctx, "k1"))
	require.ErrorIs(t, st.Release(ctx, "k1"), store.ErrIdempotencyKeyNotFound)

	stale := &store.IdempotencyRecord{Key: "k2", Fingerprint: "old", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	_, err = st.Reserve(ctx, stale)
	require.NoError(t, err)

	fresh := &store.IdempotencyRecord{Key: "k2", Fingerprint: "new", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	reserved, err := st.Reserve(ctx, fresh)
	require.NoError(t, err)
	require.Equal(t, "new", reserved.Fingerprint)
}

func TestIntegration_OrphanStore(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	st := NewOrphanStore(pool)

	require.NoError(t, st.Record(ctx, &models.OrphanedPrincipal{PrincipalID: "p-1", TenantLabel: "acme", Email: "a@x.com"}))
	require.NoError(t, st.Record(ctx, &models.OrphanedPrincipal{PrincipalID: "p-1", TenantLabel: "acme", Email: "a@x.com"}))

	orphans, err := st.ListUnresolved(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, orphans, 1)

	require.NoError(t, st.Resolve(ctx, "acme", "p-1"))
	require.ErrorIs(t, st.Resolve(ctx, "acme", "p-1"), store.ErrOrphanNotFound)
}
