// Package identity talks to the hosted identity service that issues login
// credentials. Only the admin user API and token introspection are used.
package identity

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/peopleops/internal/models"
)

// Sentinel errors for identity service operations
var (
	ErrDuplicateEmail    = errors.New("an account with this email already exists")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrInvalidToken      = errors.New("invalid token")
)

// CreatePrincipalInput describes a new login identity.
type CreatePrincipalInput struct {
	Email    string
	Password string

	// EmailConfirmed skips the confirmation email round-trip. Provisioning is
	// administrator initiated so the address is treated as verified.
	EmailConfirmed bool

	Metadata models.PrincipalMetadata
}

// APIError is a non-2xx response from the identity service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity service returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("identity service returned %d: %s", e.StatusCode, e.Message)
}
