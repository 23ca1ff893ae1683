package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreInsertAndFetchOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	require.NoError(t, store.Insert(ctx, "evt-1", "orders.events", "order-1", map[string]string{"a": "1"}))
	require.NoError(t, store.Insert(ctx, "evt-2", "orders.events", "order-1", map[string]string{"a": "2"}))

	records, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "evt-1", records[0].EventID)
	assert.Equal(t, "evt-2", records[1].EventID)
	assert.True(t, records[0].ID < records[1].ID)

	n, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemStoreFetchHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, "evt", "orders.events", "k", nil))
	}
	records, err := store.FetchPending(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestMemStoreMarkSent(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	require.NoError(t, store.Insert(ctx, "evt-1", "orders.events", "order-1", nil))

	records, err := store.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, store.MarkSent(ctx, records[0].ID))

	records, err = store.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	n, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Error(t, store.MarkSent(ctx, 999))
}

func TestMemStoreMarkFailedCountsAttempts(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	require.NoError(t, store.Insert(ctx, "evt-1", "orders.events", "order-1", nil))

	records, _ := store.FetchPending(ctx, 1)
	require.NoError(t, store.MarkFailed(ctx, records[0].ID))
	require.NoError(t, store.MarkFailed(ctx, records[0].ID))

	records, _ = store.FetchPending(ctx, 1)
	assert.Equal(t, 2, records[0].Attempts)
}
