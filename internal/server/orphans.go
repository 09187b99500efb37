package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/peopleops/internal/auth"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/provisioning"
	"github.com/wolfeidau/peopleops/internal/store"
)

type listOrphansResponse struct {
	Orphans []*models.OrphanedPrincipal `json:"orphans"`
}

// handleListOrphans serves GET /admin/orphans: principals left behind by a
// failed compensation that still need an operator.
func (s *Server) handleListOrphans(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}

	orphans, err := s.orphans.ListUnresolved(r.Context(), s.tenantLabel)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to list orphaned principals")
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	if orphans == nil {
		orphans = []*models.OrphanedPrincipal{}
	}

	writeJSON(w, http.StatusOK, listOrphansResponse{Orphans: orphans})
}

// handleResolveOrphan serves POST /admin/orphans/{principalID}/resolve once
// an operator has cleaned up the principal.
func (s *Server) handleResolveOrphan(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(w, r) {
		return
	}

	principalID := r.PathValue("principalID")

	err := s.orphans.Resolve(r.Context(), s.tenantLabel, principalID)
	if err != nil {
		if errors.Is(err, store.ErrOrphanNotFound) {
			writeError(w, http.StatusNotFound, errorResponse{Error: "Orphaned principal not found"})
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Str("principal_id", principalID).Msg("Failed to resolve orphaned principal")
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("principal_id", principalID).Msg("Orphaned principal resolved")

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) authorizeAdmin(w http.ResponseWriter, r *http.Request) bool {
	_, err := s.authorizer.Authorize(r.Context(), auth.BearerToken(r))
	if err == nil {
		return true
	}

	if errors.Is(err, provisioning.ErrLookupFailed) {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Authorization lookup failed")
	}

	s.writeProvisioningError(w, r, err)
	return false
}
