package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/domain"
)

func newOrder(t *testing.T, userID uuid.UUID) *domain.Order {
	t.Helper()
	price, err := domain.NewMoney(decimal.NewFromFloat(49.90), "USD")
	require.NoError(t, err)
	item, err := domain.NewOrderItem(uuid.New(), "Keyboard", price, 1)
	require.NoError(t, err)
	order, err := domain.NewOrder(userID, []domain.OrderItem{item})
	require.NoError(t, err)
	return order
}

func TestMemRepositoryAddAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepository()
	order := newOrder(t, uuid.New())

	require.NoError(t, repo.Add(ctx, order))

	got, err := repo.Get(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, order.ID(), got.ID())
	assert.Equal(t, order.Version(), got.Version())
	assert.True(t, order.TotalAmount().Equal(got.TotalAmount()))

	exists, err := repo.Exists(ctx, order.ID())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemRepositoryAddDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepository()
	order := newOrder(t, uuid.New())

	require.NoError(t, repo.Add(ctx, order))
	assert.ErrorIs(t, repo.Add(ctx, order), domain.ErrAlreadyExists)
}

func TestMemRepositoryGetMissing(t *testing.T) {
	repo := NewMemRepository()
	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := repo.Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepository()
	order := newOrder(t, uuid.New())
	require.NoError(t, repo.Add(ctx, order))

	require.NoError(t, order.ChangeStatus(domain.OrderStatusValidated))
	require.NoError(t, repo.Update(ctx, order))

	got, err := repo.Get(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusValidated, got.Status())
	assert.Equal(t, 1, got.Version())
}

func TestMemRepositoryUpdateMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepository()
	order := newOrder(t, uuid.New())
	require.NoError(t, order.ChangeStatus(domain.OrderStatusValidated))
	assert.ErrorIs(t, repo.Update(ctx, order), domain.ErrNotFound)
}

// a stale writer loses and the stored aggregate stays untouched.
func TestMemRepositoryUpdateStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepository()
	order := newOrder(t, uuid.New())
	require.NoError(t, repo.Add(ctx, order))

	first, err := repo.Get(ctx, order.ID())
	require.NoError(t, err)
	second, err := repo.Get(ctx, order.ID())
	require.NoError(t, err)

	require.NoError(t, first.ChangeStatus(domain.OrderStatusValidated))
	require.NoError(t, repo.Update(ctx, first))

	require.NoError(t, second.ChangeStatus(domain.OrderStatusCancelled))
	assert.ErrorIs(t, repo.Update(ctx, second), domain.ErrConcurrencyConflict)

	got, err := repo.Get(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusValidated, got.Status())
	assert.Equal(t, 1, got.Version())
}

func TestMemRepositoryGetByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepository()
	userID := uuid.New()

	orders, err := repo.GetByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	first := newOrder(t, userID)
	second := newOrder(t, userID)
	other := newOrder(t, uuid.New())
	require.NoError(t, repo.Add(ctx, first))
	require.NoError(t, repo.Add(ctx, other))
	require.NoError(t, repo.Add(ctx, second))

	orders, err = repo.GetByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID(), orders[0].ID())
	assert.Equal(t, second.ID(), orders[1].ID())
}

// aggregates come back as copies: mutating a loaded order must not leak into
// the store without an Update.
func TestMemRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepository()
	order := newOrder(t, uuid.New())
	require.NoError(t, repo.Add(ctx, order))

	loaded, err := repo.Get(ctx, order.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.ChangeStatus(domain.OrderStatusValidated))

	stored, err := repo.Get(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, stored.Status())
	assert.Equal(t, 0, stored.Version())
}
