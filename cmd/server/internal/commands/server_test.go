package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestServerCmd_missingSettings(t *testing.T) {
	tests := []struct {
		name string
		cmd  ServerCmd
		want []string
	}{
		{
			name: "nothing configured",
			want: []string{"PEOPLEOPS_TENANT_LABEL", "PEOPLEOPS_IDENTITY_URL", "PEOPLEOPS_IDENTITY_SECRET"},
		},
		{
			name: "remote identity",
			cmd: ServerCmd{
				TenantLabel: "acme",
				Identity:    IdentityFlags{URL: "https://id.example.com", Secret: "role-key"},
			},
		},
		{
			name: "memory identity needs no credentials",
			cmd:  ServerCmd{TenantLabel: "acme", Identity: IdentityFlags{Memory: true}},
		},
		{
			name: "missing secret",
			cmd:  ServerCmd{TenantLabel: "acme", Identity: IdentityFlags{URL: "https://id.example.com"}},
			want: []string{"PEOPLEOPS_IDENTITY_SECRET"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.cmd.missingSettings())
		})
	}
}

func TestServerCmd_misconfigured(t *testing.T) {
	cmd := &ServerCmd{StoreType: "memory", StepTimeout: time.Second}
	log := zerolog.Nop()

	st, err := cmd.openStores(context.Background(), log)
	require.NoError(t, err)
	defer st.Close()

	api, err := cmd.buildAPI(context.Background(), log, st)
	require.NoError(t, err)

	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/employees", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	require.Equal(t, http.StatusOK, health.StatusCode)
}

func TestServerCmd_memoryDeployment(t *testing.T) {
	cmd := &ServerCmd{
		StoreType:      "memory",
		TenantLabel:    "acme",
		StepTimeout:    time.Second,
		IdempotencyTTL: time.Hour,
		CORSOrigins:    []string{"http://localhost:3000"},
		Identity:       IdentityFlags{Memory: true},
		Dev:            DevFlags{AdminEmail: "admin@acme.test", AdminPassword: "change-me-now"},
	}

	var logs bytes.Buffer
	log := zerolog.New(&logs)

	st, err := cmd.openStores(context.Background(), log)
	require.NoError(t, err)
	defer st.Close()

	api, err := cmd.buildAPI(context.Background(), log, st)
	require.NoError(t, err)

	token := seededToken(t, &logs)

	handler, err := cmd.buildHandler(log, api.Handler())
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	body := `{"email":"new.hire@acme.test","password":"hunter22","full_name":"New Hire","role":"employee"}`
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/employees", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "hire-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	employee, err := st.directory.GetEmployeeByEmail(context.Background(), "acme", "new.hire@acme.test")
	require.NoError(t, err)
	require.Equal(t, "New", employee.FirstName)
}

func TestServerCmd_serveRequiresCertAndKey(t *testing.T) {
	cmd := &ServerCmd{Listen: "127.0.0.1:0", Cert: "cert.pem"}
	err := cmd.serve(context.Background(), zerolog.Nop(), http.NotFoundHandler())
	require.ErrorContains(t, err, "must be provided together")
}

func seededToken(t *testing.T, logs *bytes.Buffer) string {
	t.Helper()

	scanner := bufio.NewScanner(logs)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		if token, ok := entry["token"].(string); ok {
			return token
		}
	}

	t.Fatal("seeded admin token not logged")
	return ""
}
