package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/peopleops/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Provision commands.ProvisionCmd `cmd:"" help:"Provision a single employee"`
		Import    commands.ImportCmd    `cmd:"" help:"Provision employees from a YAML roster"`
		Orphans   commands.OrphansCmd   `cmd:"" help:"Manage principals left behind by failed provisioning"`
		Login     commands.LoginCmd     `cmd:"" help:"Save a server URL and token"`
		Logout    commands.LogoutCmd    `cmd:"" help:"Remove a saved credential"`
		Token     commands.TokenCmd     `cmd:"" help:"Generate a session token"`
		Debug     bool                  `help:"Enable debug mode."`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("peopleops"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
