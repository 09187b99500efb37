package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/peopleops/internal/auth"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/provisioning"
)

type createEmployeeResponse struct {
	Success           bool                           `json:"success"`
	UserID            string                         `json:"user_id"`
	EmployeeID        uuid.UUID                      `json:"employee_id"`
	Employee          *models.EmployeeRecord         `json:"employee"`
	LoginInstructions provisioning.LoginInstructions `json:"login_instructions"`
}

// handleCreateEmployee serves POST /admin/employees.
func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:  "Invalid request",
				Fields: map[string]string{"body": fmt.Sprintf("must not exceed %d bytes", maxErr.Limit)},
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid request", Detail: "failed to read request body"})
		return
	}

	in, err := provisioning.DecodeInput(bytes.NewReader(body))
	if err != nil {
		s.writeProvisioningError(w, r, err)
		return
	}

	result, err := s.provisioner.Provision(r.Context(), provisioning.Submission{
		Credential:     auth.BearerToken(r),
		Input:          in,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		s.writeProvisioningError(w, r, err)
		return
	}

	if result.Replayed {
		w.Header().Set(IdempotentReplayedHeader, "true")
	}

	writeJSON(w, http.StatusCreated, createEmployeeResponse{
		Success:           true,
		UserID:            result.PrincipalID,
		EmployeeID:        result.EmployeeID,
		Employee:          result.Employee,
		LoginInstructions: result.LoginInstructions,
	})
}

// writeProvisioningError maps saga errors to responses. Upstream detail is
// only included once the caller has been authorized as an administrator.
func (s *Server) writeProvisioningError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr    *provisioning.ValidationError
		authorizationErr *provisioning.AuthorizationError
		idempotencyErr   *provisioning.IdempotencyError
		identityErr      *provisioning.IdentityCreationError
		directoryErr     *provisioning.DirectoryWriteError
		configErr        *provisioning.ConfigurationError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, errorResponse{
			Error:  "Invalid request",
			Detail: validationErr.Error(),
			Fields: validationErr.Fields,
		})

	case errors.As(err, &authorizationErr):
		message := "Admin access required"
		if errors.Is(err, provisioning.ErrInvalidToken) || errors.Is(err, provisioning.ErrMissingCredential) {
			message = "Invalid token"
		}
		writeError(w, http.StatusForbidden, errorResponse{Error: message})

	case errors.As(err, &idempotencyErr):
		switch {
		case errors.Is(err, provisioning.ErrRequestInFlight):
			writeError(w, http.StatusConflict, errorResponse{Error: "A request with this idempotency key is still in progress"})
		case errors.Is(err, provisioning.ErrIdempotencyKeyReused):
			writeError(w, http.StatusUnprocessableEntity, errorResponse{Error: "Idempotency key was already used for a different request"})
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Idempotency store failure")
			writeError(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		}

	case errors.As(err, &identityErr):
		if identityErr.Duplicate() {
			writeError(w, http.StatusBadRequest, errorResponse{Error: identityErr.Error()})
			return
		}
		writeError(w, http.StatusBadRequest, errorResponse{
			Error:  "Failed to create user account",
			Detail: identityErr.Err.Error(),
		})

	case errors.As(err, &directoryErr):
		if orphanID := directoryErr.OrphanedPrincipalID(); orphanID != "" {
			writeError(w, http.StatusInternalServerError, errorResponse{
				Error:       "Failed to create employee record and the user account could not be removed; manual cleanup required",
				Detail:      directoryErr.Error(),
				PrincipalID: orphanID,
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorResponse{
			Error:  "Failed to create employee record",
			Detail: directoryErr.Err.Error(),
		})

	case errors.As(err, &configErr):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Server configuration error")
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "Server configuration error"})

	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Unexpected provisioning error")
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}
