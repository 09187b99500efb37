package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for idempotency store operations
var (
	ErrIdempotencyKeyExists   = errors.New("idempotency key already reserved")
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IdempotencyState tracks whether a keyed request is still running.
type IdempotencyState string

const (
	IdempotencyStatePending   IdempotencyState = "pending"
	IdempotencyStateCompleted IdempotencyState = "completed"
)

// IdempotencyRecord is a caller-supplied key bound to the fingerprint of the
// request it was first used with.
type IdempotencyRecord struct {
	Key         string
	Fingerprint string
	State       IdempotencyState
	Response    []byte // serialized result, set on completion
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsExpired returns true once the deduplication window has passed.
func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IdempotencyStore deduplicates requests by key for a bounded window.
type IdempotencyStore interface {
	// Reserve atomically stores a pending record. If an unexpired record with the
	// same key exists it is returned together with ErrIdempotencyKeyExists.
	// Expired records are replaced.
	Reserve(ctx context.Context, record *IdempotencyRecord) (*IdempotencyRecord, error)

	// Complete marks a pending record as completed and stores the response.
	Complete(ctx context.Context, key string, response []byte) error

	// Release removes a record so the key can be used again.
	Release(ctx context.Context, key string) error
}

// ExpiredKeyPurger is implemented by idempotency stores that keep expired
// records until they are explicitly removed.
type ExpiredKeyPurger interface {
	// PurgeExpired deletes expired records and returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}
