package provisioning

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/peopleops/internal/identity"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
	"github.com/wolfeidau/peopleops/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PrincipalDeleter removes a principal from the identity service.
type PrincipalDeleter interface {
	DeletePrincipal(ctx context.Context, principalID string) error
}

// CompensationManager deletes a principal whose directory write failed.
type CompensationManager struct {
	identity    PrincipalDeleter
	orphans     store.OrphanStore // optional
	stepTimeout time.Duration
	now         func() time.Time
}

// NewCompensationManager creates a compensation manager. When orphans is
// non-nil, principals that could not be deleted are queued there for an operator.
func NewCompensationManager(svc PrincipalDeleter, orphans store.OrphanStore, stepTimeout time.Duration) *CompensationManager {
	return &CompensationManager{
		identity:    svc,
		orphans:     orphans,
		stepTimeout: stepTimeout,
		now:         time.Now,
	}
}

// Compensate deletes the principal exactly once. It runs even if ctx has been
// cancelled, bounded by the step timeout. A principal the identity service no
// longer knows about counts as compensated.
func (c *CompensationManager) Compensate(ctx context.Context, principal *models.Principal, cause error) CompensationOutcome {
	ctx = context.WithoutCancel(ctx)
	logger := zerolog.Ctx(ctx)
	metrics := telemetry.GetMetrics()

	outcome := CompensationOutcome{PrincipalID: principal.PrincipalID}

	deleteCtx, cancel := context.WithTimeout(ctx, c.stepTimeout)
	err := c.identity.DeletePrincipal(deleteCtx, principal.PrincipalID)
	cancel()

	if err != nil && !errors.Is(err, identity.ErrPrincipalNotFound) {
		outcome.Err = err
	}

	if outcome.Compensated() {
		metrics.CompensationTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "compensated")))
		logger.Warn().
			Err(cause).
			Str("principal_id", principal.PrincipalID).
			Msg("Directory write failed, principal removed")
		return outcome
	}

	metrics.CompensationTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "uncompensated")))
	metrics.OrphansTotal.Add(ctx, 1)

	logger.Error().
		Err(outcome.Err).
		AnErr("cause", cause).
		Str("orphaned_principal_id", principal.PrincipalID).
		Str("email", principal.Email).
		Str("tenant_label", principal.Metadata.TenantLabel).
		Msg("Compensation failed, principal left in identity service")

	c.recordOrphan(ctx, principal, cause, outcome.Err)

	return outcome
}

func (c *CompensationManager) recordOrphan(ctx context.Context, principal *models.Principal, cause, deleteErr error) {
	recordOrphan(ctx, c.orphans, c.stepTimeout, &models.OrphanedPrincipal{
		PrincipalID: principal.PrincipalID,
		Email:       principal.Email,
		TenantLabel: principal.Metadata.TenantLabel,
		Reason:      errors.Join(cause, deleteErr).Error(),
		RecordedAt:  c.now(),
	})
}

// recordOrphan queues orphan for an operator. Failures are logged only, the
// caller has already logged the orphan itself.
func recordOrphan(ctx context.Context, orphans store.OrphanStore, timeout time.Duration, orphan *models.OrphanedPrincipal) {
	if orphans == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := orphans.Record(ctx, orphan); err != nil {
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("orphaned_principal_id", orphan.PrincipalID).
			Msg("Failed to record orphaned principal")
	}
}
