package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfeidau/peopleops/cmd/cli/internal/credentials"
	"github.com/wolfeidau/peopleops/internal/client"
)

const defaultServerURL = "http://localhost:8080"

type Globals struct {
	Debug   bool
	Version string
}

// ClientFlags configure access to the admin API. Server and token fall back
// to the saved credential named by --profile, or the default one.
type ClientFlags struct {
	Server         string        `help:"Server URL" env:"PEOPLEOPS_SERVER"`
	Token          string        `help:"Bearer token of an administrator" env:"PEOPLEOPS_TOKEN"`
	Profile        string        `help:"Saved credential to use" env:"PEOPLEOPS_PROFILE"`
	CredentialsDir string        `help:"Credential store directory" hidden:"" env:"PEOPLEOPS_CREDENTIALS_DIR"`
	Timeout        time.Duration `help:"Request timeout" default:"1m"`
}

func (f *ClientFlags) newClient(globals *Globals) (*client.Client, error) {
	server, token, err := f.resolve()
	if err != nil {
		return nil, err
	}

	return client.New(client.Config{
		ServerURL: server,
		Token:     token,
		Timeout:   f.Timeout,
		Debug:     globals.Debug,
	})
}

func (f *ClientFlags) resolve() (string, string, error) {
	server, token := f.Server, f.Token

	if token == "" {
		store, err := credentials.NewStore(f.CredentialsDir)
		if err != nil {
			return "", "", err
		}

		var cred *credentials.Credential
		if f.Profile != "" {
			cred, err = store.Get(f.Profile)
		} else {
			cred, err = store.GetDefault()
		}
		if errors.Is(err, credentials.ErrNoDefaultCredential) {
			return "", "", errors.New("no token provided, pass --token or run 'peopleops login'")
		}
		if err != nil {
			return "", "", fmt.Errorf("failed to load credential: %w", err)
		}

		token, err = store.LoadToken(cred.Name)
		if err != nil {
			return "", "", fmt.Errorf("failed to load token: %w", err)
		}
		if server == "" {
			server = cred.ServerURL
		}
	}

	if server == "" {
		server = defaultServerURL
	}

	return server, token, nil
}
