package provisioning

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/peopleops/internal/identity"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

// TokenResolver resolves a bearer credential to the principal it was issued to.
// Implemented by the identity service client and by local JWT verification.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.Principal, error)
}

// CallerDirectory looks up the caller's directory record.
type CallerDirectory interface {
	GetEmployeeByEmail(ctx context.Context, tenantLabel, email string) (*models.EmployeeRecord, error)
}

// Caller is an authenticated administrator.
type Caller struct {
	PrincipalID string
	Email       string
	EmployeeID  uuid.UUID
	Role        models.Role
	TenantLabel string
}

// Gate confirms the caller is an active administrator in the tenant before
// anything is written.
type Gate struct {
	tokens      TokenResolver
	directory   CallerDirectory
	tenantLabel string
	stepTimeout time.Duration
}

// NewGate creates an authorization gate for a tenant.
func NewGate(tokens TokenResolver, directory CallerDirectory, tenantLabel string, stepTimeout time.Duration) *Gate {
	return &Gate{
		tokens:      tokens,
		directory:   directory,
		tenantLabel: tenantLabel,
		stepTimeout: stepTimeout,
	}
}

// Authorize resolves the credential and checks the caller's directory role.
// It is read-only.
func (g *Gate) Authorize(ctx context.Context, credential string) (*Caller, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, &AuthorizationError{Reason: ErrMissingCredential}
	}

	principal, err := g.resolve(ctx, credential)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return nil, &AuthorizationError{Reason: ErrInvalidToken, Err: err}
		}
		return nil, &AuthorizationError{Reason: ErrLookupFailed, Err: err}
	}

	record, err := g.lookup(ctx, principal.Email)
	if err != nil {
		if errors.Is(err, store.ErrEmployeeNotFound) {
			return nil, &AuthorizationError{Reason: ErrCallerNotFound}
		}
		return nil, &AuthorizationError{Reason: ErrLookupFailed, Err: err}
	}

	// the email may have been re-used by a different principal
	if record.PrincipalID != principal.PrincipalID {
		zerolog.Ctx(ctx).Warn().
			Str("principal_id", principal.PrincipalID).
			Str("record_principal_id", record.PrincipalID).
			Msg("Caller email matches a directory record for another principal")
		return nil, &AuthorizationError{Reason: ErrCallerNotFound}
	}

	if !record.IsActive {
		return nil, &AuthorizationError{Reason: ErrCallerInactive}
	}

	if record.Role != models.RoleAdmin {
		return nil, &AuthorizationError{Reason: ErrNotAdmin}
	}

	return &Caller{
		PrincipalID: principal.PrincipalID,
		Email:       record.Email,
		EmployeeID:  record.EmployeeID,
		Role:        record.Role,
		TenantLabel: record.TenantLabel,
	}, nil
}

func (g *Gate) resolve(ctx context.Context, credential string) (*models.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, g.stepTimeout)
	defer cancel()

	principal, err := g.tokens.ResolveToken(ctx, credential)
	if err != nil {
		return nil, err
	}
	if principal == nil || principal.Email == "" {
		return nil, identity.ErrInvalidToken
	}
	return principal, nil
}

func (g *Gate) lookup(ctx context.Context, email string) (*models.EmployeeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, g.stepTimeout)
	defer cancel()

	return g.directory.GetEmployeeByEmail(ctx, g.tenantLabel, email)
}
