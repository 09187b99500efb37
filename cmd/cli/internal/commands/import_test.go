package commands

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/peopleops/internal/client"
	"github.com/wolfeidau/peopleops/internal/provisioning"
)

const testRoster = `
tenant: acme
employees:
  - email: Ann@Example.com
    password: hunter22
    full_name: Ann Lee
    role: employee
  - email: bob@example.com
    password: hunter22
    full_name: Bob
    role: manager
    job_title: Engineering Manager
    department: 6f1c64e4-8a49-4df8-9b55-2b0a6a7a37c1
`

func TestLoadRoster(t *testing.T) {
	roster, err := LoadRoster(strings.NewReader(testRoster))
	require.NoError(t, err)
	require.Equal(t, "acme", roster.Tenant)
	require.Len(t, roster.Employees, 2)
	require.Equal(t, "Engineering Manager", roster.Employees[1].JobTitle)

	in := roster.Employees[1].input()
	require.NotNil(t, in.Department)
	require.Nil(t, in.ManagerID)
}

func TestLoadRoster_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		roster  string
		wantErr string
	}{
		{
			name:    "missing tenant",
			roster:  "employees: []",
			wantErr: "roster tenant is required",
		},
		{
			name:    "unknown field",
			roster:  "tenant: acme\nstaff: []",
			wantErr: "failed to parse roster",
		},
		{
			name: "invalid role",
			roster: `tenant: acme
employees:
  - {email: a@example.com, password: x, full_name: A, role: owner}`,
			wantErr: "role: must be one of employee, manager, admin",
		},
		{
			name: "duplicate email",
			roster: `tenant: acme
employees:
  - {email: a@example.com, password: x, full_name: A, role: employee}
  - {email: A@example.com, password: y, full_name: B, role: employee}`,
			wantErr: "employee 2: duplicate of employee 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRoster(strings.NewReader(tt.roster))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestImportKey(t *testing.T) {
	a := ImportKey("acme", "Ann@Example.com")
	require.Equal(t, a, ImportKey("acme", " ann@example.com "))
	require.NotEqual(t, a, ImportKey("globex", "ann@example.com"))

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(5), parsed.Version())
}

type fakeCreator struct {
	keys   []string
	replay map[string]bool
	errs   map[string]error
}

func (f *fakeCreator) CreateEmployee(_ context.Context, in provisioning.Input, key string) (*client.Employee, error) {
	f.keys = append(f.keys, key)
	if err, ok := f.errs[in.Email]; ok {
		return nil, err
	}
	return &client.Employee{
		UserID:     "user-" + in.Email,
		EmployeeID: uuid.New(),
		Replayed:   f.replay[in.Email],
	}, nil
}

func TestImportRoster(t *testing.T) {
	roster := &Roster{
		Tenant: "acme",
		Employees: []RosterEntry{
			{Email: "a@example.com", Password: "x", FullName: "A", Role: "employee"},
			{Email: "b@example.com", Password: "x", FullName: "B", Role: "employee"},
			{Email: "c@example.com", Password: "x", FullName: "C", Role: "employee"},
			{Email: "d@example.com", Password: "x", FullName: "D", Role: "employee"},
		},
	}

	creator := &fakeCreator{
		replay: map[string]bool{"b@example.com": true},
		errs: map[string]error{
			"c@example.com": &client.APIError{StatusCode: http.StatusBadRequest, Message: "an account with this email already exists"},
			"d@example.com": &client.APIError{StatusCode: http.StatusInternalServerError, Message: "Failed to create employee record"},
		},
	}

	var out bytes.Buffer
	summary, err := ImportRoster(context.Background(), creator, roster, &out)
	require.ErrorContains(t, err, "d@example.com")
	require.Equal(t, ImportSummary{Created: 1, Replayed: 1, Existing: 1, Failed: 1}, summary)
	require.Len(t, creator.keys, 4)
	require.Equal(t, ImportKey("acme", "a@example.com"), creator.keys[0])
	require.Contains(t, out.String(), "replayed b@example.com")
	require.Contains(t, out.String(), "exists   c@example.com")
}

func TestImportRoster_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	creator := &fakeCreator{}
	roster := &Roster{Tenant: "acme", Employees: []RosterEntry{{Email: "a@example.com"}}}

	_, err := ImportRoster(ctx, creator, roster, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, creator.keys)
}
