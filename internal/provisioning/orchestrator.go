// Package provisioning creates employee accounts across the identity service
// and the directory store. The two stores do not share a transaction, so the
// orchestrator runs a saga: a failed directory write is followed by deleting
// the principal that was just created.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
	"github.com/wolfeidau/peopleops/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/wolfeidau/peopleops/internal/provisioning"

	// DefaultStepTimeout bounds each remote call made by the saga.
	DefaultStepTimeout = 10 * time.Second
)

// ValidatorFunc turns a wire request into a validated request for a tenant.
type ValidatorFunc func(in *Input, tenantLabel string) (*Request, error)

// Authorizer confirms the caller may provision employees.
type Authorizer interface {
	Authorize(ctx context.Context, credential string) (*Caller, error)
}

// PrincipalCreator creates the identity service principal.
type PrincipalCreator interface {
	Provision(ctx context.Context, req *Request) (*models.Principal, error)
}

// EmployeeWriter creates the directory record for a principal.
type EmployeeWriter interface {
	Write(ctx context.Context, principal *models.Principal, req *Request) (*models.EmployeeRecord, error)
}

// Compensator undoes principal creation.
type Compensator interface {
	Compensate(ctx context.Context, principal *models.Principal, cause error) CompensationOutcome
}

// Config holds the collaborators used to build the default saga steps.
type Config struct {
	TenantLabel    string
	StepTimeout    time.Duration
	IdempotencyTTL time.Duration

	Identity  IdentityService
	Tokens    TokenResolver
	Directory store.DirectoryStore

	Orphans     store.OrphanStore      // optional
	Idempotency store.IdempotencyStore // optional, disables Idempotency-Key support when nil
}

// Option overrides a saga step.
type Option func(*Orchestrator)

// WithValidator replaces request validation.
func WithValidator(v ValidatorFunc) Option {
	return func(o *Orchestrator) { o.validate = v }
}

// WithAuthorizer replaces the authorization gate.
func WithAuthorizer(a Authorizer) Option {
	return func(o *Orchestrator) { o.authorizer = a }
}

// WithIdentityProvisioner replaces principal creation.
func WithIdentityProvisioner(p PrincipalCreator) Option {
	return func(o *Orchestrator) { o.creator = p }
}

// WithDirectoryWriter replaces the directory insert.
func WithDirectoryWriter(w EmployeeWriter) Option {
	return func(o *Orchestrator) { o.writer = w }
}

// WithCompensator replaces principal deletion after a failed directory write.
func WithCompensator(c Compensator) Option {
	return func(o *Orchestrator) { o.compensator = c }
}

func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Submission is one provisioning call as received from an entry point.
type Submission struct {
	Credential     string
	Input          *Input
	IdempotencyKey string // optional
}

// LoginInstructions tell the administrator how the new employee signs in.
// Password is only present on the call that created the employee; a replayed
// result never carries it.
type LoginInstructions struct {
	Email               string `json:"email"`
	Password            string `json:"password,omitempty"`
	CanLoginImmediately bool   `json:"can_login_immediately"`
}

// Result is a successful provisioning.
type Result struct {
	PrincipalID       string
	EmployeeID        uuid.UUID
	Employee          *models.EmployeeRecord
	LoginInstructions LoginInstructions

	// Replayed is true when the result was served for a repeated idempotency key.
	Replayed bool
}

// Orchestrator runs the provisioning saga. It is safe for concurrent use; each
// call to Provision is independent.
type Orchestrator struct {
	tenantLabel    string
	stepTimeout    time.Duration
	idempotencyTTL time.Duration
	idempotency    store.IdempotencyStore
	orphans        store.OrphanStore
	now            func() time.Time

	validate    ValidatorFunc
	authorizer  Authorizer
	creator     PrincipalCreator
	writer      EmployeeWriter
	compensator Compensator
}

// NewOrchestrator builds the saga from cfg. Options replace individual steps;
// collaborators only needed by a replaced step may be left nil in cfg.
func NewOrchestrator(cfg Config, opts ...Option) (*Orchestrator, error) {
	if cfg.TenantLabel == "" {
		return nil, &ConfigurationError{Missing: []string{"tenant label"}}
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = DefaultIdempotencyTTL
	}

	o := &Orchestrator{
		tenantLabel:    cfg.TenantLabel,
		stepTimeout:    cfg.StepTimeout,
		idempotencyTTL: cfg.IdempotencyTTL,
		idempotency:    cfg.Idempotency,
		orphans:        cfg.Orphans,
		now:            time.Now,
		validate:       Validate,
	}

	for _, opt := range opts {
		opt(o)
	}

	var missing []string

	if o.authorizer == nil {
		if cfg.Tokens == nil || cfg.Directory == nil {
			missing = append(missing, "token resolver and directory for authorization")
		} else {
			o.authorizer = NewGate(cfg.Tokens, cfg.Directory, cfg.TenantLabel, cfg.StepTimeout)
		}
	}
	if o.creator == nil {
		if cfg.Identity == nil {
			missing = append(missing, "identity service")
		} else {
			o.creator = NewIdentityProvisioner(cfg.Identity, cfg.StepTimeout)
		}
	}
	if o.writer == nil {
		if cfg.Directory == nil {
			missing = append(missing, "directory store")
		} else {
			o.writer = NewDirectoryWriter(cfg.Directory, cfg.StepTimeout)
		}
	}
	if o.compensator == nil {
		if cfg.Identity == nil {
			missing = append(missing, "identity service for compensation")
		} else {
			o.compensator = NewCompensationManager(cfg.Identity, cfg.Orphans, cfg.StepTimeout)
		}
	}

	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	return o, nil
}

// Provision runs the saga for one submission. It returns a *Result, or one of
// *ValidationError, *AuthorizationError, *IdempotencyError,
// *IdentityCreationError or *DirectoryWriteError. Use StateOf to classify.
func (o *Orchestrator) Provision(ctx context.Context, sub Submission) (*Result, error) {
	started := time.Now()
	s := newSaga()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "provisioning.Provision",
		trace.WithAttributes(attribute.String("tenant_label", o.tenantLabel)))
	defer span.End()

	result, err := o.run(ctx, s, sub)

	o.finish(ctx, span, s, started, result, err)

	return result, err
}

func (o *Orchestrator) run(ctx context.Context, s *saga, sub Submission) (*Result, error) {
	req, err := o.validate(sub.Input, o.tenantLabel)
	if err == nil && sub.IdempotencyKey != "" {
		if msg := validateIdempotencyKey(sub.IdempotencyKey); msg != "" {
			err = &ValidationError{Fields: map[string]string{"idempotency_key": msg}}
		}
	}
	if err != nil {
		s.advance(StateValidationFailed)
		return nil, err
	}

	s.advance(StateAuthorizing)

	caller, err := o.authorize(ctx, sub.Credential)
	if err != nil {
		s.advance(StateAuthorizationFailed)
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().
		Str("caller_principal_id", caller.PrincipalID).
		Str("email", req.Email).
		Logger()
	ctx = logger.WithContext(ctx)

	var held *reservation
	if sub.IdempotencyKey != "" && o.idempotency != nil {
		var replay *Result
		held, replay, err = o.reserve(ctx, caller, req, sub.IdempotencyKey)
		if err != nil {
			s.advance(StateIdempotencyRejected)
			return nil, err
		}
		if replay != nil {
			s.advance(StateReplayed)
			return replay, nil
		}
	}

	s.advance(StateCreatingPrincipal)

	principal, err := o.createPrincipal(ctx, req)
	if err != nil {
		held.release(ctx, o.stepTimeout)
		s.advance(StateIdentityCreationFailed)
		return nil, err
	}

	s.advance(StateWritingDirectory)

	employee, err := o.writeDirectory(ctx, principal, req)
	if err != nil {
		s.advance(StateCompensating)

		dirErr := &DirectoryWriteError{}
		if !errors.As(err, &dirErr) {
			dirErr = &DirectoryWriteError{Err: err}
		}
		dirErr.Compensation = o.compensate(ctx, principal, dirErr.Err)

		held.release(ctx, o.stepTimeout)

		if dirErr.Compensation.Compensated() {
			s.advance(StateCompensatedFailure)
		} else {
			s.advance(StateUncompensatedFailure)
		}
		return nil, dirErr
	}

	s.advance(StateSuccess)

	result := &Result{
		PrincipalID: principal.PrincipalID,
		EmployeeID:  employee.EmployeeID,
		Employee:    employee,
		LoginInstructions: LoginInstructions{
			Email:               req.Email,
			Password:            req.InitialCredential,
			CanLoginImmediately: true,
		},
	}

	held.complete(ctx, o.stepTimeout, result)

	return result, nil
}

func (o *Orchestrator) authorize(ctx context.Context, credential string) (*Caller, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provisioning.Authorize")
	defer span.End()

	caller, err := o.authorizer.Authorize(ctx, credential)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization failed")
		var authErr *AuthorizationError
		if !errors.As(err, &authErr) {
			err = &AuthorizationError{Reason: ErrLookupFailed, Err: err}
		}
		return nil, err
	}
	return caller, nil
}

func (o *Orchestrator) createPrincipal(ctx context.Context, req *Request) (*models.Principal, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provisioning.CreatePrincipal")
	defer span.End()

	principal, err := o.creator.Provision(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "principal creation failed")
		var identityErr *IdentityCreationError
		if !errors.As(err, &identityErr) {
			err = &IdentityCreationError{Err: err}
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			o.recordSuspectedOrphan(ctx, req, err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("principal_id", principal.PrincipalID))
	return principal, nil
}

// recordSuspectedOrphan escalates a create call that gave up before the
// identity service answered. The principal may exist, so it is queued by
// email for an operator to check.
func (o *Orchestrator) recordSuspectedOrphan(ctx context.Context, req *Request, cause error) {
	orphan := &models.OrphanedPrincipal{
		PrincipalID: models.UnconfirmedPrincipalID(req.TenantLabel, req.Email),
		Email:       req.Email,
		TenantLabel: req.TenantLabel,
		Reason:      "principal creation outcome unknown: " + cause.Error(),
		RecordedAt:  o.now(),
	}

	telemetry.GetMetrics().OrphansTotal.Add(context.WithoutCancel(ctx), 1,
		metric.WithAttributes(attribute.String("outcome", "unconfirmed")))

	zerolog.Ctx(ctx).Error().
		Err(cause).
		Str("orphaned_principal_id", orphan.PrincipalID).
		Str("email", req.Email).
		Str("tenant_label", req.TenantLabel).
		Msg("Principal creation timed out, principal may exist in identity service")

	recordOrphan(ctx, o.orphans, o.stepTimeout, orphan)
}

func (o *Orchestrator) writeDirectory(ctx context.Context, principal *models.Principal, req *Request) (*models.EmployeeRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provisioning.WriteDirectory")
	defer span.End()

	employee, err := o.writer.Write(ctx, principal, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "directory write failed")
		return nil, err
	}
	return employee, nil
}

func (o *Orchestrator) compensate(ctx context.Context, principal *models.Principal, cause error) CompensationOutcome {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provisioning.Compensate",
		trace.WithAttributes(attribute.String("principal_id", principal.PrincipalID)))
	defer span.End()

	outcome := o.compensator.Compensate(ctx, principal, cause)
	outcome.PrincipalID = principal.PrincipalID
	if !outcome.Compensated() {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "compensation failed")
	}
	return outcome
}

// finish records the terminal state in logs, metrics and the trace.
func (o *Orchestrator) finish(ctx context.Context, span trace.Span, s *saga, started time.Time, result *Result, err error) {
	state := s.state
	elapsed := time.Since(started)
	metrics := telemetry.GetMetrics()

	attrs := metric.WithAttributes(attribute.String("state", state.String()))
	metrics.ProvisioningTotal.Add(ctx, 1, attrs)
	metrics.ProvisioningDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	span.SetAttributes(attribute.String("saga.state", state.String()))

	logger := zerolog.Ctx(ctx)

	switch state {
	case StateSuccess:
		span.SetStatus(codes.Ok, "")
		logger.Info().
			Str("principal_id", result.PrincipalID).
			Str("employee_id", result.EmployeeID.String()).
			Dur("duration", elapsed).
			Msg("Employee provisioned")
	case StateReplayed:
		span.SetStatus(codes.Ok, "")
		metrics.IdempotentReplaysTotal.Add(ctx, 1)
		logger.Info().
			Str("principal_id", result.PrincipalID).
			Msg("Replayed provisioning result for idempotency key")
	case StateUncompensatedFailure:
		span.SetStatus(codes.Error, state.String())
		var dirErr *DirectoryWriteError
		orphanID := ""
		if errors.As(err, &dirErr) {
			orphanID = dirErr.OrphanedPrincipalID()
		}
		logger.Error().
			Err(err).
			Str("state", state.String()).
			Str("orphaned_principal_id", orphanID).
			Dur("duration", elapsed).
			Msg("Provisioning failed and left an orphaned principal")
	case StateCompensatedFailure, StateIdentityCreationFailed:
		span.SetStatus(codes.Error, state.String())
		logger.Warn().
			Err(err).
			Str("state", state.String()).
			Dur("duration", elapsed).
			Msg("Provisioning failed")
	default:
		span.SetStatus(codes.Error, state.String())
		logger.Info().
			Err(err).
			Str("state", state.String()).
			Msg("Provisioning rejected")
	}

	if !state.IsTerminal() {
		panic(fmt.Sprintf("provisioning: saga finished in non-terminal state %s", state))
	}
}
