package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/peopleops/internal/store"
)

// scriptedKeys replays a fixed sequence of upsert and read outcomes.
type scriptedKeys struct {
	inserts []bool
	reads   []error
	live    *store.IdempotencyRecord

	insertCalls int
	readCalls   int
}

func (s *scriptedKeys) insert(ctx context.Context, record *store.IdempotencyRecord) (bool, error) {
	inserted := s.inserts[s.insertCalls]
	s.insertCalls++
	return inserted, nil
}

func (s *scriptedKeys) get(ctx context.Context, key string) (*store.IdempotencyRecord, error) {
	err := s.reads[s.readCalls]
	s.readCalls++
	if err != nil {
		return nil, err
	}
	return s.live, nil
}

func TestReserveWithRetry(t *testing.T) {
	now := time.Now()
	record := &store.IdempotencyRecord{Key: "acme/p-1/k", Fingerprint: "fp", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	live := &store.IdempotencyRecord{Key: "acme/p-1/k", Fingerprint: "other", State: store.IdempotencyStateCompleted}

	tests := []struct {
		name        string
		inserts     []bool
		reads       []error
		wantErr     error
		wantState   store.IdempotencyState
		wantInserts int
	}{
		{
			name:        "reserved first time",
			inserts:     []bool{true},
			wantState:   store.IdempotencyStatePending,
			wantInserts: 1,
		},
		{
			name:        "live key returned",
			inserts:     []bool{false},
			reads:       []error{nil},
			wantErr:     store.ErrIdempotencyKeyExists,
			wantState:   store.IdempotencyStateCompleted,
			wantInserts: 1,
		},
		{
			name:        "key released between upsert and read",
			inserts:     []bool{false, true},
			reads:       []error{store.ErrIdempotencyKeyNotFound},
			wantState:   store.IdempotencyStatePending,
			wantInserts: 2,
		},
		{
			name:        "released then taken again",
			inserts:     []bool{false, false},
			reads:       []error{store.ErrIdempotencyKeyNotFound, nil},
			wantErr:     store.ErrIdempotencyKeyExists,
			wantState:   store.IdempotencyStateCompleted,
			wantInserts: 2,
		},
		{
			name:        "gives up after second miss",
			inserts:     []bool{false, false},
			reads:       []error{store.ErrIdempotencyKeyNotFound, store.ErrIdempotencyKeyNotFound},
			wantErr:     store.ErrIdempotencyKeyNotFound,
			wantInserts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := &scriptedKeys{inserts: tt.inserts, reads: tt.reads, live: live}

			got, err := reserveWithRetry(context.Background(), record, keys.insert, keys.get)

			require.Equal(t, tt.wantInserts, keys.insertCalls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.wantState == "" {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tt.wantState, got.State)
		})
	}
}

func TestReserveWithRetry_insertError(t *testing.T) {
	boom := errors.New("connection reset")
	insert := func(context.Context, *store.IdempotencyRecord) (bool, error) { return false, boom }
	get := func(context.Context, string) (*store.IdempotencyRecord, error) {
		t.Fatal("read after failed upsert")
		return nil, nil
	}

	_, err := reserveWithRetry(context.Background(), &store.IdempotencyRecord{Key: "k"}, insert, get)
	require.ErrorIs(t, err, boom)
}

var _ store.ExpiredKeyPurger = (*IdempotencyStore)(nil)
