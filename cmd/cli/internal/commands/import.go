package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/wolfeidau/peopleops/internal/client"
	"github.com/wolfeidau/peopleops/internal/provisioning"
	"gopkg.in/yaml.v3"
)

// importNamespace scopes roster idempotency keys.
var importNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/wolfeidau/peopleops/import"))

// Roster is a YAML file of employees to provision.
type Roster struct {
	Tenant    string        `yaml:"tenant"`
	Employees []RosterEntry `yaml:"employees"`
}

type RosterEntry struct {
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	FullName   string `yaml:"full_name"`
	Role       string `yaml:"role"`
	JobTitle   string `yaml:"job_title"`
	Department string `yaml:"department"`
	ManagerID  string `yaml:"manager_id"`
}

// EmployeeCreator provisions one employee.
type EmployeeCreator interface {
	CreateEmployee(ctx context.Context, in provisioning.Input, idempotencyKey string) (*client.Employee, error)
}

type ImportCmd struct {
	ClientFlags `embed:""`

	File   string `arg:"" help:"YAML roster file" type:"existingfile"`
	DryRun bool   `help:"Validate the roster without provisioning"`
}

// ImportSummary counts roster outcomes.
type ImportSummary struct {
	Created  int
	Replayed int
	Existing int
	Failed   int
}

func (i *ImportCmd) Run(ctx context.Context, globals *Globals) error {
	f, err := os.Open(i.File)
	if err != nil {
		return fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	roster, err := LoadRoster(f)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d employees for tenant %s\n", len(roster.Employees), roster.Tenant)

	if i.DryRun {
		return nil
	}

	c, err := i.newClient(globals)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	summary, err := ImportRoster(ctx, c, roster, os.Stdout)

	fmt.Printf("Created %d, replayed %d, already existed %d, failed %d\n",
		summary.Created, summary.Replayed, summary.Existing, summary.Failed)

	return err
}

// LoadRoster parses and checks a roster. Entries are validated locally so a
// bad file fails before anything is provisioned.
func LoadRoster(r io.Reader) (*Roster, error) {
	var roster Roster

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	if roster.Tenant == "" {
		return nil, errors.New("roster tenant is required")
	}

	var result *multierror.Error
	seen := make(map[string]int)

	for idx, entry := range roster.Employees {
		email := strings.ToLower(strings.TrimSpace(entry.Email))
		if prev, ok := seen[email]; ok {
			result = multierror.Append(result, fmt.Errorf("employee %d: duplicate of employee %d (%s)", idx+1, prev+1, entry.Email))
			continue
		}
		seen[email] = idx

		in := entry.input()
		if _, err := provisioning.Validate(&in, roster.Tenant); err != nil {
			result = multierror.Append(result, fmt.Errorf("employee %d (%s): %w", idx+1, entry.Email, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &roster, nil
}

// ImportRoster provisions every entry in order, continuing past failures.
// Each entry carries a key derived from the tenant and email, so re-running
// an interrupted import replays completed entries instead of failing them.
func ImportRoster(ctx context.Context, c EmployeeCreator, roster *Roster, out io.Writer) (ImportSummary, error) {
	var (
		summary ImportSummary
		result  *multierror.Error
	)

	for _, entry := range roster.Employees {
		if err := ctx.Err(); err != nil {
			return summary, multierror.Append(result, err).ErrorOrNil()
		}

		resp, err := c.CreateEmployee(ctx, entry.input(), ImportKey(roster.Tenant, entry.Email))
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Duplicate() {
				summary.Existing++
				fmt.Fprintf(out, "exists   %s\n", entry.Email)
				continue
			}
			summary.Failed++
			fmt.Fprintf(out, "failed   %s: %v\n", entry.Email, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", entry.Email, err))
			continue
		}

		if resp.Replayed {
			summary.Replayed++
			fmt.Fprintf(out, "replayed %s\n", entry.Email)
			continue
		}

		summary.Created++
		fmt.Fprintf(out, "created  %s (%s)\n", entry.Email, resp.EmployeeID)
	}

	return summary, result.ErrorOrNil()
}

// ImportKey derives the idempotency key for a roster entry.
func ImportKey(tenant, email string) string {
	name := tenant + "/" + strings.ToLower(strings.TrimSpace(email))
	return uuid.NewSHA1(importNamespace, []byte(name)).String()
}

func (e RosterEntry) input() provisioning.Input {
	return provisioning.Input{
		Email:      e.Email,
		Password:   e.Password,
		FullName:   e.FullName,
		Role:       e.Role,
		JobTitle:   e.JobTitle,
		Department: optionalFlag(e.Department),
		ManagerID:  optionalFlag(e.ManagerID),
	}
}
