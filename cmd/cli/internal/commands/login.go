package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/peopleops/cmd/cli/internal/credentials"
)

// LoginCmd saves a server URL and token for later commands.
type LoginCmd struct {
	Name           string `help:"Credential name" default:"default"`
	Server         string `help:"Server URL" default:"http://localhost:8080" env:"PEOPLEOPS_SERVER"`
	Token          string `help:"Bearer token of an administrator" required:"" env:"PEOPLEOPS_TOKEN"`
	Default        bool   `help:"Make this the default credential"`
	CredentialsDir string `help:"Credential store directory" hidden:"" env:"PEOPLEOPS_CREDENTIALS_DIR"`
}

func (l *LoginCmd) Run(ctx context.Context) error {
	store, err := credentials.NewStore(l.CredentialsDir)
	if err != nil {
		return err
	}

	cred, err := store.Save(l.Name, l.Server, l.Token)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	if l.Default {
		if err := store.SetDefault(cred.Name); err != nil {
			return fmt.Errorf("failed to set default credential: %w", err)
		}
	}

	fmt.Printf("Saved credential %s for %s (fingerprint %s)\n", cred.Name, cred.ServerURL, cred.Fingerprint)
	return nil
}

// LogoutCmd removes a saved credential.
type LogoutCmd struct {
	Name           string `help:"Credential name" default:"default"`
	CredentialsDir string `help:"Credential store directory" hidden:"" env:"PEOPLEOPS_CREDENTIALS_DIR"`
}

func (l *LogoutCmd) Run(ctx context.Context) error {
	store, err := credentials.NewStore(l.CredentialsDir)
	if err != nil {
		return err
	}

	if err := store.Delete(l.Name); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}

	fmt.Printf("Removed credential %s\n", l.Name)
	return nil
}
