package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wolfeidau/peopleops/internal/store"
)

// IdempotencyStore implements store.IdempotencyStore using in-memory storage.
type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*store.IdempotencyRecord
	now     func() time.Time
}

// NewIdempotencyStore creates a new in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		records: make(map[string]*store.IdempotencyRecord),
		now:     time.Now,
	}
}

// Reserve stores a pending record unless a live record with the same key exists.
func (s *IdempotencyStore) Reserve(ctx context.Context, record *store.IdempotencyRecord) (*store.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[record.Key]; ok && !existing.IsExpired(s.now()) {
		clone := cloneRecord(existing)
		return clone, store.ErrIdempotencyKeyExists
	}

	clone := cloneRecord(record)
	clone.State = store.IdempotencyStatePending
	s.records[record.Key] = clone

	return cloneRecord(clone), nil
}

// Complete marks a record as completed.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, response []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return store.ErrIdempotencyKeyNotFound
	}

	record.State = store.IdempotencyStateCompleted
	record.Response = append([]byte(nil), response...)

	return nil
}

// Release removes a record.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return store.ErrIdempotencyKeyNotFound
	}
	delete(s.records, key)

	return nil
}

// PurgeExpired drops expired records and returns how many were removed.
func (s *IdempotencyStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for key, record := range s.records {
		if record.IsExpired(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

func cloneRecord(r *store.IdempotencyRecord) *store.IdempotencyRecord {
	clone := *r
	clone.Response = append([]byte(nil), r.Response...)
	return &clone
}
