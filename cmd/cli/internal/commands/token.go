package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/peopleops/internal/auth"
)

// TokenCmd issues a session token signed with the identity service JWT secret.
// Useful against a development identity service.
type TokenCmd struct {
	Subject    string        `help:"Principal ID" required:""`
	Email      string        `help:"Principal email" required:""`
	Audience   string        `help:"Token audience" default:"authenticated"`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey string        `help:"JWT signing key" required:"" env:"PEOPLEOPS_IDENTITY_JWT_SECRET"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	token, err := auth.IssueToken(t.SigningKey, t.Subject, t.Email, t.Audience, t.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
