package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/peopleops/internal/client"
	"github.com/wolfeidau/peopleops/internal/provisioning"
)

type ProvisionCmd struct {
	ClientFlags `embed:""`

	Email          string `help:"Employee email address" required:""`
	Password       string `help:"Initial password" required:"" env:"PEOPLEOPS_INITIAL_PASSWORD"`
	FullName       string `help:"Full name, first token is the first name" required:""`
	Role           string `help:"Directory role" default:"employee" enum:"employee,manager,admin"`
	JobTitle       string `help:"Job title (defaults to Staff)"`
	Department     string `help:"Department ID"`
	ManagerID      string `help:"Employee ID of the manager"`
	IdempotencyKey string `help:"Idempotency key, reuse it when retrying the same request"`
}

func (p *ProvisionCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := p.newClient(globals)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	in := provisioning.Input{
		Email:      p.Email,
		Password:   p.Password,
		FullName:   p.FullName,
		Role:       p.Role,
		JobTitle:   p.JobTitle,
		Department: optionalFlag(p.Department),
		ManagerID:  optionalFlag(p.ManagerID),
	}

	out, err := c.CreateEmployee(ctx, in, p.IdempotencyKey)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.PrincipalID != "" {
			fmt.Printf("Principal %s was left in the identity service and needs manual cleanup\n", apiErr.PrincipalID)
		}
		return fmt.Errorf("failed to provision employee: %w", err)
	}

	if out.Replayed {
		fmt.Println("Request was already processed, showing the original result")
	}

	fmt.Printf("Provisioned %s\n", out.LoginInstructions.Email)
	fmt.Printf("  User ID:     %s\n", out.UserID)
	fmt.Printf("  Employee ID: %s\n", out.EmployeeID)
	if out.Employee != nil {
		fmt.Printf("  Name:        %s\n", out.Employee.FullName())
		fmt.Printf("  Role:        %s\n", out.Employee.Role)
		fmt.Printf("  Job title:   %s\n", out.Employee.JobTitle)
	}

	return nil
}

func optionalFlag(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
