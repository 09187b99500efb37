package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

// OrphanStore implements store.OrphanStore using PostgreSQL.
type OrphanStore struct {
	pool *pgxpool.Pool
}

// NewOrphanStore creates a new PostgreSQL-backed orphan store.
func NewOrphanStore(pool *pgxpool.Pool) *OrphanStore {
	return &OrphanStore{
		pool: pool,
	}
}

// Record inserts an orphaned principal, ignoring duplicates.
func (s *OrphanStore) Record(ctx context.Context, orphan *models.OrphanedPrincipal) error {
	if orphan.RecordedAt.IsZero() {
		orphan.RecordedAt = time.Now()
	}

	query := `
		INSERT INTO orphaned_principals (principal_id, tenant_label, email, reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (principal_id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		orphan.PrincipalID,
		orphan.TenantLabel,
		orphan.Email,
		orphan.Reason,
		orphan.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record orphaned principal: %w", mapPostgresError(err))
	}

	log.Info().
		Str("principal_id", orphan.PrincipalID).
		Str("tenant_label", orphan.TenantLabel).
		Msg("Recorded orphaned principal")

	return nil
}

// ListUnresolved returns unresolved orphans in a tenant, oldest first.
func (s *OrphanStore) ListUnresolved(ctx context.Context, tenantLabel string) ([]*models.OrphanedPrincipal, error) {
	query := `
		SELECT principal_id, tenant_label, email, reason, recorded_at, resolved_at
		FROM orphaned_principals
		WHERE tenant_label = $1 AND resolved_at IS NULL
		ORDER BY recorded_at ASC
	`

	rows, err := s.pool.Query(ctx, query, tenantLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphaned principals: %w", mapPostgresError(err))
	}
	defer rows.Close()

	orphans := []*models.OrphanedPrincipal{}
	for rows.Next() {
		var o models.OrphanedPrincipal
		if err := rows.Scan(
			&o.PrincipalID,
			&o.TenantLabel,
			&o.Email,
			&o.Reason,
			&o.RecordedAt,
			&o.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned principal: %w", err)
		}
		orphans = append(orphans, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orphaned principals: %w", err)
	}

	return orphans, nil
}

// Resolve marks an orphan as cleaned up.
func (s *OrphanStore) Resolve(ctx context.Context, tenantLabel, principalID string) error {
	query := `
		UPDATE orphaned_principals
		SET resolved_at = $3
		WHERE tenant_label = $1 AND principal_id = $2 AND resolved_at IS NULL
	`

	result, err := s.pool.Exec(ctx, query, tenantLabel, principalID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to resolve orphaned principal: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrphanNotFound
	}

	log.Info().
		Str("principal_id", principalID).
		Msg("Resolved orphaned principal")

	return nil
}
