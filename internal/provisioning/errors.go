package provisioning

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/wolfeidau/peopleops/internal/identity"
)

// Authorization failure reasons, matched with errors.Is against an *AuthorizationError.
var (
	ErrMissingCredential = errors.New("missing bearer credential")
	ErrInvalidToken      = errors.New("invalid token")
	ErrCallerNotFound    = errors.New("caller has no directory record in this tenant")
	ErrCallerInactive    = errors.New("caller is not active")
	ErrNotAdmin          = errors.New("admin access required")
	ErrLookupFailed      = errors.New("caller lookup failed")
)

// Idempotency failures, matched with errors.Is against an *IdempotencyError.
var (
	ErrRequestInFlight      = errors.New("a request with this idempotency key is still in progress")
	ErrIdempotencyKeyReused = errors.New("idempotency key was already used for a different request")
)

// ErrTenantMismatch is the cause of a DirectoryWriteError when the principal's
// tenant metadata does not match the tenant being written to.
var ErrTenantMismatch = errors.New("principal tenant does not match request tenant")

// ValidationError lists every field that failed validation, keyed by wire name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AuthorizationError means the caller could not be authenticated or is not an
// administrator. Nothing has been written when this is returned.
type AuthorizationError struct {
	Reason error
	Err    error // underlying cause, may be nil
}

func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization failed: %v: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authorization failed: %v", e.Reason)
}

func (e *AuthorizationError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

// IdempotencyError means the idempotency key could not be honoured.
// Nothing has been written when this is returned.
type IdempotencyError struct {
	Key string
	Err error
}

func (e *IdempotencyError) Error() string {
	return fmt.Sprintf("idempotency key %q: %v", e.Key, e.Err)
}

func (e *IdempotencyError) Unwrap() error { return e.Err }

// IdentityCreationError means the identity service refused to create the
// principal. The directory was not touched.
type IdentityCreationError struct {
	Err error
}

func (e *IdentityCreationError) Error() string {
	if e.Duplicate() {
		return identity.ErrDuplicateEmail.Error()
	}
	return fmt.Sprintf("failed to create principal: %v", e.Err)
}

func (e *IdentityCreationError) Unwrap() error { return e.Err }

// Duplicate reports whether the identity service rejected the email as taken.
func (e *IdentityCreationError) Duplicate() bool {
	return errors.Is(e.Err, identity.ErrDuplicateEmail)
}

// CompensationOutcome is the result of deleting a principal after a failed
// directory write.
type CompensationOutcome struct {
	PrincipalID string
	Err         error // nil when the principal was removed
}

// Compensated reports whether the principal is gone.
func (o CompensationOutcome) Compensated() bool {
	return o.Err == nil
}

// DirectoryWriteError means the employee record could not be inserted after
// the principal was created. Compensation records whether the principal was
// removed again; if not, the principal is orphaned and needs an operator.
type DirectoryWriteError struct {
	Err          error
	Compensation CompensationOutcome
}

func (e *DirectoryWriteError) Error() string {
	if e.Compensation.PrincipalID != "" && !e.Compensation.Compensated() {
		return fmt.Sprintf("directory write failed: %v; principal %s was left in the identity service: %v",
			e.Err, e.Compensation.PrincipalID, e.Compensation.Err)
	}
	return fmt.Sprintf("directory write failed: %v", e.Err)
}

func (e *DirectoryWriteError) Unwrap() error { return e.Err }

// OrphanedPrincipalID returns the principal left behind by a failed
// compensation, or an empty string if nothing was left behind.
func (e *DirectoryWriteError) OrphanedPrincipalID() string {
	if e.Compensation.Compensated() {
		return ""
	}
	return e.Compensation.PrincipalID
}

// ConfigurationError means required deployment settings are missing.
// It is returned before any remote call is made.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

// StateOf maps an error returned by Orchestrator.Provision to the terminal
// state the saga finished in. A nil error is StateSuccess. Errors that did not
// come from the saga map to StateUnknown.
func StateOf(err error) State {
	if err == nil {
		return StateSuccess
	}

	var (
		validationErr    *ValidationError
		authorizationErr *AuthorizationError
		idempotencyErr   *IdempotencyError
		identityErr      *IdentityCreationError
		directoryErr     *DirectoryWriteError
	)

	switch {
	case errors.As(err, &validationErr):
		return StateValidationFailed
	case errors.As(err, &authorizationErr):
		return StateAuthorizationFailed
	case errors.As(err, &idempotencyErr):
		return StateIdempotencyRejected
	case errors.As(err, &identityErr):
		return StateIdentityCreationFailed
	case errors.As(err, &directoryErr):
		if directoryErr.OrphanedPrincipalID() != "" {
			return StateUncompensatedFailure
		}
		return StateCompensatedFailure
	default:
		return StateUnknown
	}
}
