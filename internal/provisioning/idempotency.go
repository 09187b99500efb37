package provisioning

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

const (
	// DefaultIdempotencyTTL is how long a completed key is remembered.
	DefaultIdempotencyTTL = 24 * time.Hour

	maxIdempotencyKeyLength = 255
)

// validateIdempotencyKey returns a message describing why key is unusable, or
// an empty string.
func validateIdempotencyKey(key string) string {
	if len(key) > maxIdempotencyKeyLength {
		return fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength)
	}
	for _, r := range key {
		if r < 0x21 || r > 0x7e {
			return "must contain only printable ASCII characters"
		}
	}
	return ""
}

// Fingerprint identifies a request for idempotency purposes. The same caller
// sending the same request produces the same fingerprint. The initial
// credential is left out so no hash of a password is ever persisted.
func Fingerprint(callerPrincipalID string, req *Request) string {
	canonical, _ := json.Marshal(struct {
		Caller     string  `json:"caller"`
		Tenant     string  `json:"tenant"`
		Email      string  `json:"email"`
		FullName   string  `json:"full_name"`
		Role       string  `json:"role"`
		JobTitle   string  `json:"job_title"`
		Department *string `json:"department"`
		ManagerID  *string `json:"manager_id"`
	}{
		Caller:     callerPrincipalID,
		Tenant:     req.TenantLabel,
		Email:      req.Email,
		FullName:   req.FullName,
		Role:       string(req.Role),
		JobTitle:   req.JobTitle,
		Department: req.Department,
		ManagerID:  req.ManagerID,
	})

	sum := sha256.Sum256(canonical)
	return base58.Encode(sum[:])
}

// storedResult is what is persisted for a completed key. The initial
// credential is never stored.
type storedResult struct {
	PrincipalID         string                 `json:"principal_id"`
	EmployeeID          uuid.UUID              `json:"employee_id"`
	Employee            *models.EmployeeRecord `json:"employee"`
	LoginEmail          string                 `json:"login_email"`
	CanLoginImmediately bool                   `json:"can_login_immediately"`
}

// reservation is a held idempotency key.
type reservation struct {
	key   string
	store store.IdempotencyStore
}

// reserve claims the key for this request. A completed key with a matching
// fingerprint returns the stored result instead, without login password.
func (o *Orchestrator) reserve(ctx context.Context, caller *Caller, req *Request, key string) (*reservation, *Result, error) {
	storeKey := req.TenantLabel + "/" + caller.PrincipalID + "/" + key
	fingerprint := Fingerprint(caller.PrincipalID, req)
	now := o.now()

	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	existing, err := o.idempotency.Reserve(ctx, &store.IdempotencyRecord{
		Key:         storeKey,
		Fingerprint: fingerprint,
		State:       store.IdempotencyStatePending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(o.idempotencyTTL),
	})
	if err == nil {
		return &reservation{key: storeKey, store: o.idempotency}, nil, nil
	}
	if !errors.Is(err, store.ErrIdempotencyKeyExists) {
		return nil, nil, &IdempotencyError{Key: key, Err: err}
	}

	if existing.Fingerprint != fingerprint {
		return nil, nil, &IdempotencyError{Key: key, Err: ErrIdempotencyKeyReused}
	}
	if existing.State != store.IdempotencyStateCompleted {
		return nil, nil, &IdempotencyError{Key: key, Err: ErrRequestInFlight}
	}

	var stored storedResult
	if err := json.Unmarshal(existing.Response, &stored); err != nil {
		return nil, nil, &IdempotencyError{Key: key, Err: fmt.Errorf("failed to decode stored result: %w", err)}
	}

	return nil, &Result{
		PrincipalID: stored.PrincipalID,
		EmployeeID:  stored.EmployeeID,
		Employee:    stored.Employee,
		LoginInstructions: LoginInstructions{
			Email:               stored.LoginEmail,
			CanLoginImmediately: stored.CanLoginImmediately,
		},
		Replayed: true,
	}, nil
}

// complete stores the result against the key. A failure releases the key so
// a retry falls back to duplicate-email detection instead of being blocked.
func (r *reservation) complete(ctx context.Context, stepTimeout time.Duration, result *Result) {
	if r == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)

	response, err := json.Marshal(storedResult{
		PrincipalID:         result.PrincipalID,
		EmployeeID:          result.EmployeeID,
		Employee:            result.Employee,
		LoginEmail:          result.LoginInstructions.Email,
		CanLoginImmediately: result.LoginInstructions.CanLoginImmediately,
	})
	if err == nil {
		completeCtx, cancel := context.WithTimeout(ctx, stepTimeout)
		err = r.store.Complete(completeCtx, r.key, response)
		cancel()
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("idempotency_key", r.key).Msg("Failed to store provisioning result")
		r.release(ctx, stepTimeout)
	}
}

// release frees the key after a failed saga so the caller may retry with it.
func (r *reservation) release(ctx context.Context, stepTimeout time.Duration) {
	if r == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stepTimeout)
	defer cancel()

	if err := r.store.Release(ctx, r.key); err != nil && !errors.Is(err, store.ErrIdempotencyKeyNotFound) {
		zerolog.Ctx(ctx).Error().Err(err).Str("idempotency_key", r.key).Msg("Failed to release idempotency key")
	}
}
