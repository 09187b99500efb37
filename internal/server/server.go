package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/peopleops/internal/provisioning"
	"github.com/wolfeidau/peopleops/internal/store"
)

const (
	// maxBodyBytes caps provisioning request bodies.
	maxBodyBytes = 64 << 10

	// IdempotencyKeyHeader carries the caller supplied idempotency key.
	IdempotencyKeyHeader = "Idempotency-Key"

	// IdempotentReplayedHeader is set on responses served from a stored result.
	IdempotentReplayedHeader = "Idempotent-Replayed"
)

// Provisioner runs the provisioning saga.
type Provisioner interface {
	Provision(ctx context.Context, sub provisioning.Submission) (*provisioning.Result, error)
}

// Server serves the admin API.
type Server struct {
	provisioner Provisioner
	authorizer  provisioning.Authorizer
	orphans     store.OrphanStore
	tenantLabel string

	// configErr is set when required settings are missing. Every admin
	// request then fails with a 500 before any remote call.
	configErr *provisioning.ConfigurationError
}

// NewServer creates a server for one tenant.
func NewServer(tenantLabel string, provisioner Provisioner, authorizer provisioning.Authorizer, orphans store.OrphanStore) *Server {
	return &Server{
		provisioner: provisioner,
		authorizer:  authorizer,
		orphans:     orphans,
		tenantLabel: tenantLabel,
	}
}

// NewMisconfiguredServer creates a server that only answers health checks and
// reports configErr on every admin endpoint.
func NewMisconfiguredServer(configErr *provisioning.ConfigurationError) *Server {
	return &Server{configErr: configErr}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/admin/employees", s.requireConfig(s.handleCreateEmployee))
	mux.HandleFunc("GET /admin/orphans", s.requireConfig(s.handleListOrphans))
	mux.HandleFunc("POST /admin/orphans/{principalID}/resolve", s.requireConfig(s.handleResolveOrphan))

	return mux
}

func (s *Server) requireConfig(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.configErr != nil {
			zerolog.Ctx(r.Context()).Error().Err(s.configErr).Msg("Rejecting request, server is not configured")
			writeError(w, http.StatusInternalServerError, errorResponse{Error: "Server configuration error"})
			return
		}
		next(w, r)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`

	// PrincipalID identifies a principal left behind in the identity service.
	PrincipalID string `json:"principal_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
