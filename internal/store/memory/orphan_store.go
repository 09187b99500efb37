package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

// OrphanStore implements store.OrphanStore using in-memory storage.
type OrphanStore struct {
	mu      sync.RWMutex
	orphans map[string]*models.OrphanedPrincipal // principal_id -> orphan
}

// NewOrphanStore creates a new in-memory orphan store.
func NewOrphanStore() *OrphanStore {
	return &OrphanStore{
		orphans: make(map[string]*models.OrphanedPrincipal),
	}
}

// Record adds an orphaned principal.
func (s *OrphanStore) Record(ctx context.Context, orphan *models.OrphanedPrincipal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orphans[orphan.PrincipalID]; exists {
		return nil
	}

	clone := *orphan
	if clone.RecordedAt.IsZero() {
		clone.RecordedAt = time.Now()
	}
	s.orphans[orphan.PrincipalID] = &clone

	return nil
}

// ListUnresolved returns unresolved orphans in a tenant, oldest first.
func (s *OrphanStore) ListUnresolved(ctx context.Context, tenantLabel string) ([]*models.OrphanedPrincipal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*models.OrphanedPrincipal{}
	for _, o := range s.orphans {
		if o.TenantLabel != tenantLabel || o.IsResolved() {
			continue
		}
		clone := *o
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})

	return result, nil
}

// Resolve marks an orphan as cleaned up.
func (s *OrphanStore) Resolve(ctx context.Context, tenantLabel, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphan, exists := s.orphans[principalID]
	if !exists || orphan.TenantLabel != tenantLabel || orphan.IsResolved() {
		return store.ErrOrphanNotFound
	}

	now := time.Now()
	orphan.ResolvedAt = &now

	return nil
}
