package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/peopleops/internal/identity"
	memoryidentity "github.com/wolfeidau/peopleops/internal/identity/memory"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

// seedAdmin creates the first administrator so a fresh development server can
// provision employees. The session token is logged for use with the CLI.
func seedAdmin(ctx context.Context, log zerolog.Logger, svc *memoryidentity.Service, directory store.DirectoryStore, tenantLabel, email, password string) error {
	principal, err := svc.CreatePrincipal(ctx, identity.CreatePrincipalInput{
		Email:          email,
		Password:       password,
		EmailConfirmed: true,
		Metadata: models.PrincipalMetadata{
			Role:        models.RoleAdmin,
			TenantLabel: tenantLabel,
			DisplayName: "Administrator",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create admin principal: %w", err)
	}

	err = directory.CreateEmployee(ctx, &models.EmployeeRecord{
		PrincipalID: principal.PrincipalID,
		Email:       principal.Email,
		FirstName:   "Administrator",
		Role:        models.RoleAdmin,
		JobTitle:    models.DefaultJobTitle,
		TenantLabel: tenantLabel,
		IsActive:    true,
	})
	if err != nil && !errors.Is(err, store.ErrEmployeeAlreadyExists) {
		return fmt.Errorf("failed to create admin employee: %w", err)
	}

	token, err := svc.IssueToken(principal.PrincipalID)
	if err != nil {
		return fmt.Errorf("failed to issue admin token: %w", err)
	}

	log.Info().
		Str("email", principal.Email).
		Str("principal_id", principal.PrincipalID).
		Str("token", token).
		Msg("Seeded development admin, export the token as PEOPLEOPS_TOKEN")

	return nil
}
