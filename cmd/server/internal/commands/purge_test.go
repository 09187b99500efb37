package commands

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/peopleops/internal/store"
	memorystore "github.com/wolfeidau/peopleops/internal/store/memory"
)

// countingPurger records purge calls and fails the first failFirst of them.
type countingPurger struct {
	*memorystore.IdempotencyStore

	calls     atomic.Int32
	removed   atomic.Int64
	failFirst int32
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int64, error) {
	if p.calls.Add(1) <= p.failFirst {
		return 0, errors.New("database unavailable")
	}
	n, err := p.IdempotencyStore.PurgeExpired(ctx)
	p.removed.Add(n)
	return n, err
}

func TestPurgeExpiredKeys(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int32
	}{
		{name: "purges on each tick"},
		{name: "keeps going after a failed purge", failFirst: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			purger := &countingPurger{IdempotencyStore: memorystore.NewIdempotencyStore(), failFirst: tt.failFirst}

			now := time.Now()
			_, err := purger.Reserve(context.Background(), &store.IdempotencyRecord{Key: "stale", ExpiresAt: now.Add(-time.Minute)})
			require.NoError(t, err)
			_, err = purger.Reserve(context.Background(), &store.IdempotencyRecord{Key: "live", ExpiresAt: now.Add(time.Hour)})
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				defer close(done)
				purgeExpiredKeys(ctx, zerolog.Nop(), purger, 5*time.Millisecond)
			}()

			require.Eventually(t, func() bool {
				return purger.calls.Load() > tt.failFirst+1
			}, time.Second, 5*time.Millisecond)

			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("purge loop did not stop after cancellation")
			}

			require.EqualValues(t, 1, purger.removed.Load())
			require.NoError(t, purger.Complete(context.Background(), "live", nil))
		})
	}
}

func TestStores_idempotencyPurgeable(t *testing.T) {
	var idempotency store.IdempotencyStore = memorystore.NewIdempotencyStore()
	_, ok := idempotency.(store.ExpiredKeyPurger)
	require.True(t, ok)
}
