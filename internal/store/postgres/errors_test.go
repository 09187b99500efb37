package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/peopleops/internal/store"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{
			name:   "duplicate email",
			err:    &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintEmployeesTenantEmail},
			target: store.ErrEmployeeAlreadyExists,
		},
		{
			name:   "duplicate principal",
			err:    &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintEmployeesTenantPrincipal},
			target: store.ErrEmployeeAlreadyExists,
		},
		{
			name:   "duplicate department",
			err:    &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintDepartmentsPkey},
			target: store.ErrDepartmentAlreadyExists,
		},
		{
			name:   "unknown manager",
			err:    &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: constraintEmployeesManager},
			target: store.ErrUnknownManager,
		},
		{
			name:   "unknown department",
			err:    &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: constraintEmployeesDepartment},
			target: store.ErrUnknownDepartment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, mapPostgresError(tt.err), tt.target)
		})
	}
}

func TestMapPostgresError_passthrough(t *testing.T) {
	require.NoError(t, mapPostgresError(nil))

	plain := errors.New("boom")
	require.Equal(t, plain, mapPostgresError(plain))

	pgErr := &pgconn.PgError{Code: pgerrcode.ConnectionFailure}
	mapped := mapPostgresError(pgErr)
	require.ErrorContains(t, mapped, "database connection error")
	require.ErrorAs(t, mapped, &pgErr)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}
