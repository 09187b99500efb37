package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/peopleops/internal/models"
	"github.com/wolfeidau/peopleops/internal/store"
)

func TestOrphanStore(t *testing.T) {
	st := NewOrphanStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.Record(ctx, &models.OrphanedPrincipal{PrincipalID: "p-2", TenantLabel: "acme", RecordedAt: now}))
	require.NoError(t, st.Record(ctx, &models.OrphanedPrincipal{PrincipalID: "p-1", TenantLabel: "acme", RecordedAt: now.Add(-time.Minute)}))
	require.NoError(t, st.Record(ctx, &models.OrphanedPrincipal{PrincipalID: "p-3", TenantLabel: "globex", RecordedAt: now}))

	// recording twice is a no-op
	require.NoError(t, st.Record(ctx, &models.OrphanedPrincipal{PrincipalID: "p-1", TenantLabel: "acme", Reason: "again"}))

	orphans, err := st.ListUnresolved(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	require.Equal(t, "p-1", orphans[0].PrincipalID)
	require.Empty(t, orphans[0].Reason)

	require.NoError(t, st.Resolve(ctx, "acme", "p-1"))
	require.ErrorIs(t, st.Resolve(ctx, "acme", "p-1"), store.ErrOrphanNotFound)
	require.ErrorIs(t, st.Resolve(ctx, "acme", "p-3"), store.ErrOrphanNotFound)

	orphans, err = st.ListUnresolved(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, "p-2", orphans[0].PrincipalID)
}
