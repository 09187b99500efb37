package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/peopleops/internal/store"
)

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	st := NewIdempotencyStore()
	ctx := context.Background()
	now := time.Now()

	record := &store.IdempotencyRecord{
		Key:         "acme/p-1/key-1",
		Fingerprint: "fp-1",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}

	reserved, err := st.Reserve(ctx, record)
	require.NoError(t, err)
	require.Equal(t, store.IdempotencyStatePending, reserved.State)

	existing, err := st.Reserve(ctx, record)
	require.ErrorIs(t, err, store.ErrIdempotencyKeyExists)
	require.Equal(t, store.IdempotencyStatePending, existing.State)

	require.NoError(t, st.Complete(ctx, record.Key, []byte(`{"ok":true}`)))

	existing, err = st.Reserve(ctx, record)
	require.ErrorIs(t, err, store.ErrIdempotencyKeyExists)
	require.Equal(t, store.IdempotencyStateCompleted, existing.State)
	require.JSONEq(t, `{"ok":true}`, string(existing.Response))

	require.NoError(t, st.Release(ctx, record.Key))
	require.ErrorIs(t, st.Release(ctx, record.Key), store.ErrIdempotencyKeyNotFound)

	_, err = st.Reserve(ctx, record)
	require.NoError(t, err)
}

func TestIdempotencyStore_ExpiredRecordReplaced(t *testing.T) {
	st := NewIdempotencyStore()
	ctx := context.Background()
	now := time.Now()

	stale := &store.IdempotencyRecord{
		Key:         "k",
		Fingerprint: "old",
		CreatedAt:   now.Add(-2 * time.Hour),
		ExpiresAt:   now.Add(-time.Hour),
	}
	_, err := st.Reserve(ctx, stale)
	require.NoError(t, err)

	fresh := &store.IdempotencyRecord{
		Key:         "k",
		Fingerprint: "new",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	reserved, err := st.Reserve(ctx, fresh)
	require.NoError(t, err)
	require.Equal(t, "new", reserved.Fingerprint)
}

func TestIdempotencyStore_PurgeExpired(t *testing.T) {
	st := NewIdempotencyStore()
	ctx := context.Background()
	now := time.Now()

	_, err := st.Reserve(ctx, &store.IdempotencyRecord{Key: "old", ExpiresAt: now.Add(-time.Minute)})
	require.NoError(t, err)
	_, err = st.Reserve(ctx, &store.IdempotencyRecord{Key: "live", ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	removed, err := st.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
	require.ErrorIs(t, st.Complete(ctx, "old", nil), store.ErrIdempotencyKeyNotFound)
	require.NoError(t, st.Complete(ctx, "live", nil))
}
