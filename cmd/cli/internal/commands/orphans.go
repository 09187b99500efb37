package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

type OrphansCmd struct {
	List    OrphansListCmd    `cmd:"" default:"1" help:"List principals awaiting cleanup"`
	Resolve OrphansResolveCmd `cmd:"" help:"Mark a principal as cleaned up"`
}

type OrphansListCmd struct {
	ClientFlags `embed:""`
}

func (o *OrphansListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := o.newClient(globals)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	orphans, err := c.ListOrphans(ctx)
	if err != nil {
		return fmt.Errorf("failed to list orphans: %w", err)
	}

	if len(orphans) == 0 {
		fmt.Println("No orphaned principals")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRINCIPAL ID\tEMAIL\tRECORDED\tREASON")
	for _, orphan := range orphans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", orphan.PrincipalID, orphan.Email, orphan.RecordedAt.Format(time.RFC3339), orphan.Reason)
	}
	return w.Flush()
}

type OrphansResolveCmd struct {
	ClientFlags `embed:""`

	PrincipalID string `arg:"" help:"Principal ID that was removed from the identity service"`
}

func (o *OrphansResolveCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := o.newClient(globals)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := c.ResolveOrphan(ctx, o.PrincipalID); err != nil {
		return fmt.Errorf("failed to resolve orphan: %w", err)
	}

	fmt.Printf("Resolved %s\n", o.PrincipalID)
	return nil
}
