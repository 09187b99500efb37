package provisioning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/peopleops/internal/models"
)

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "valid", body: `{"email":"a@x.com","password":"p1","full_name":"Ann Lee","role":"employee","manager_id":null}`},
		{name: "malformed", body: `{"email":`, wantField: "body"},
		{name: "empty", body: ``, wantField: "body"},
		{name: "not an object", body: `[1,2]`, wantField: "body"},
		{name: "wrong type", body: `{"email":42}`, wantField: "email"},
		{name: "trailing data", body: `{"email":"a@x.com"}{"email":"b@x.com"}`, wantField: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInput(strings.NewReader(tt.body))
			if tt.wantField == "" {
				require.NoError(t, err)
				require.Equal(t, "a@x.com", in.Email)
				require.Nil(t, in.ManagerID)
				return
			}

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Contains(t, validationErr.Fields, tt.wantField)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("normalizes and defaults", func(t *testing.T) {
		req, err := Validate(&Input{
			Email:      "  Ann.Lee@X.com ",
			Password:   "p1",
			FullName:   "  Ann   Marie  Lee ",
			Role:       "manager",
			Department: strPtr("  "),
			ManagerID:  strPtr("0196f1a0-0000-7000-8000-000000000000"),
		}, testTenant)
		require.NoError(t, err)

		require.Equal(t, "ann.lee@x.com", req.Email)
		require.Equal(t, "Ann", req.FirstName)
		require.Equal(t, "Marie Lee", req.LastName)
		require.Equal(t, "Ann Marie Lee", req.FullName)
		require.Equal(t, models.RoleManager, req.Role)
		require.Equal(t, models.DefaultJobTitle, req.JobTitle)
		require.Nil(t, req.Department)
		require.Equal(t, "0196f1a0-0000-7000-8000-000000000000", *req.ManagerID)
		require.Equal(t, "p1", req.InitialCredential)
		require.Equal(t, testTenant, req.TenantLabel)
	})

	t.Run("single name has empty last name", func(t *testing.T) {
		req, err := Validate(&Input{Email: "cher@x.com", Password: "p", FullName: "Cher", Role: "employee"}, testTenant)
		require.NoError(t, err)
		require.Equal(t, "Cher", req.FirstName)
		require.Empty(t, req.LastName)
	})

	t.Run("keeps job title", func(t *testing.T) {
		req, err := Validate(&Input{Email: "a@x.com", Password: "p", FullName: "Ann", Role: "admin", JobTitle: "CTO"}, testTenant)
		require.NoError(t, err)
		require.Equal(t, "CTO", req.JobTitle)
		require.Equal(t, models.RoleAdmin, req.Role)
	})

	t.Run("whitespace-only name is blank", func(t *testing.T) {
		_, err := Validate(&Input{Email: "a@x.com", Password: "p", FullName: "   ", Role: "employee"}, testTenant)
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Equal(t, []string{"full_name"}, keys(validationErr.Fields))
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := Validate(annLee(), "")
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Equal(t, []string{"tenant_label"}, keys(validationErr.Fields))
	})

	t.Run("role matching is exact", func(t *testing.T) {
		tests := []struct {
			role    string
			wantErr string
		}{
			{role: "Admin", wantErr: "must be one of employee, manager, admin"},
			{role: " manager ", wantErr: ""},
			{role: "", wantErr: "cannot be blank"},
		}
		for _, tt := range tests {
			in := annLee()
			in.Role = tt.role
			_, err := Validate(in, testTenant)
			if tt.wantErr == "" {
				require.NoError(t, err, tt.role)
				continue
			}
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr, tt.role)
			require.Equal(t, tt.wantErr, validationErr.Fields["role"], tt.role)
		}
	})

	t.Run("reports every field", func(t *testing.T) {
		_, err := Validate(&Input{Email: "nope", Role: "root"}, "")
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.ElementsMatch(t, []string{"email", "password", "full_name", "role", "tenant_label"}, keys(validationErr.Fields))
		require.Equal(t, "must be one of employee, manager, admin", validationErr.Fields["role"])
		require.True(t, strings.HasPrefix(validationErr.Error(), "validation failed: email: "))
	})
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
