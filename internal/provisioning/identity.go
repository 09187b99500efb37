package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/wolfeidau/peopleops/internal/identity"
	"github.com/wolfeidau/peopleops/internal/models"
)

// IdentityService is the part of the identity service the saga writes to.
type IdentityService interface {
	CreatePrincipal(ctx context.Context, in identity.CreatePrincipalInput) (*models.Principal, error)
	DeletePrincipal(ctx context.Context, principalID string) error
}

// IdentityProvisioner creates the login principal for a new employee.
type IdentityProvisioner struct {
	identity    IdentityService
	stepTimeout time.Duration
}

// NewIdentityProvisioner creates a provisioner.
func NewIdentityProvisioner(svc IdentityService, stepTimeout time.Duration) *IdentityProvisioner {
	return &IdentityProvisioner{identity: svc, stepTimeout: stepTimeout}
}

// Provision creates a pre-confirmed principal carrying the employee's role and
// tenant as metadata. Any failure is an *IdentityCreationError.
//
// The create call is detached from ctx cancellation so a client disconnect
// cannot abandon a principal the identity service has already committed.
// Only the step timeout bounds it.
func (p *IdentityProvisioner) Provision(ctx context.Context, req *Request) (*models.Principal, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.stepTimeout)
	defer cancel()

	principal, err := p.identity.CreatePrincipal(ctx, identity.CreatePrincipalInput{
		Email:          req.Email,
		Password:       req.InitialCredential,
		EmailConfirmed: true,
		Metadata: models.PrincipalMetadata{
			Role:        req.Role,
			TenantLabel: req.TenantLabel,
			DisplayName: req.FullName,
		},
	})
	if err != nil {
		return nil, &IdentityCreationError{Err: err}
	}

	if principal == nil || principal.PrincipalID == "" {
		return nil, &IdentityCreationError{Err: errors.New("identity service returned no principal id")}
	}

	return principal, nil
}
