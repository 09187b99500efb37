package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/peopleops/internal/models"
)

// Sentinel errors for orphan store operations
var (
	ErrOrphanNotFound = errors.New("orphaned principal not found")
)

// OrphanStore is the operator escalation queue for principals left behind in
// the identity service after a failed compensation.
type OrphanStore interface {
	// Record adds an orphaned principal. Recording the same principal twice is a no-op.
	Record(ctx context.Context, orphan *models.OrphanedPrincipal) error

	// ListUnresolved returns orphans in a tenant that have not been resolved, oldest first.
	ListUnresolved(ctx context.Context, tenantLabel string) ([]*models.OrphanedPrincipal, error)

	// Resolve marks an orphan as cleaned up.
	// Returns ErrOrphanNotFound if no unresolved orphan matches.
	Resolve(ctx context.Context, tenantLabel, principalID string) error
}
