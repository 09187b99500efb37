package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/peopleops/internal/store"
)

// IdempotencyStore implements store.IdempotencyStore using PostgreSQL.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore creates a new PostgreSQL-backed idempotency store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{
		pool: pool,
	}
}

// reserveAttempts bounds how often Reserve retries when the conflicting row
// disappears between the upsert and the read.
const reserveAttempts = 2

// Reserve inserts a pending record, replacing an expired one. The upsert only
// overwrites rows whose expires_at has passed, so a live record is never clobbered.
func (s *IdempotencyStore) Reserve(ctx context.Context, record *store.IdempotencyRecord) (*store.IdempotencyRecord, error) {
	return reserveWithRetry(ctx, record, s.insert, s.get)
}

// reserveWithRetry returns the reserved record, or the live record holding the
// key with store.ErrIdempotencyKeyExists. A key released by another request
// after our upsert lost is free again, so the upsert is retried.
func reserveWithRetry(
	ctx context.Context,
	record *store.IdempotencyRecord,
	insert func(context.Context, *store.IdempotencyRecord) (bool, error),
	get func(context.Context, string) (*store.IdempotencyRecord, error),
) (*store.IdempotencyRecord, error) {
	for attempt := 1; ; attempt++ {
		inserted, err := insert(ctx, record)
		if err != nil {
			return nil, err
		}

		if inserted {
			reserved := *record
			reserved.State = store.IdempotencyStatePending
			reserved.Response = nil
			return &reserved, nil
		}

		existing, err := get(ctx, record.Key)
		if errors.Is(err, store.ErrIdempotencyKeyNotFound) && attempt < reserveAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to reserve idempotency key after %d attempts: %w", attempt, err)
		}
		return existing, store.ErrIdempotencyKeyExists
	}
}

func (s *IdempotencyStore) insert(ctx context.Context, record *store.IdempotencyRecord) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (key, fingerprint, state, response, created_at, expires_at)
		VALUES ($1, $2, $3, NULL, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			state = EXCLUDED.state,
			response = NULL,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= EXCLUDED.created_at
	`

	result, err := s.pool.Exec(ctx, query,
		record.Key,
		record.Fingerprint,
		string(store.IdempotencyStatePending),
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", mapPostgresError(err))
	}

	return result.RowsAffected() == 1, nil
}

// Complete marks a pending record as completed.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, response []byte) error {
	query := `
		UPDATE idempotency_keys
		SET state = $2, response = $3
		WHERE key = $1
	`

	result, err := s.pool.Exec(ctx, query, key, string(store.IdempotencyStateCompleted), response)
	if err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrIdempotencyKeyNotFound
	}

	return nil
}

// Release deletes a record.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrIdempotencyKeyNotFound
	}

	return nil
}

// PurgeExpired deletes expired records and returns how many were removed.
func (s *IdempotencyStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", mapPostgresError(err))
	}
	return result.RowsAffected(), nil
}

func (s *IdempotencyStore) get(ctx context.Context, key string) (*store.IdempotencyRecord, error) {
	query := `
		SELECT key, fingerprint, state, response, created_at, expires_at
		FROM idempotency_keys
		WHERE key = $1
	`

	var (
		r     store.IdempotencyRecord
		state string
	)
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&r.Key,
		&r.Fingerprint,
		&state,
		&r.Response,
		&r.CreatedAt,
		&r.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Released between the insert attempt and this read
			return nil, store.ErrIdempotencyKeyNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency key: %w", mapPostgresError(err))
	}
	r.State = store.IdempotencyState(state)

	return &r, nil
}
