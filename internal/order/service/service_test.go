package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/domain"
	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/storage"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/contracts"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/logging"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/outbox"
)

type countingWaker struct{ n int }

func (w *countingWaker) Wake() { w.n++ }

type fixture struct {
	svc   *OrderService
	repo  *storage.MemRepository
	store *outbox.MemStore
	waker *countingWaker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := storage.NewMemRepository()
	store := outbox.NewMemStore()
	waker := &countingWaker{}
	svc := New(repo, store, nil, waker, "orders.events", logging.New("test"))
	return &fixture{svc: svc, repo: repo, store: store, waker: waker}
}

func testItem(t *testing.T, name string, amount float64, currency string, quantity int) domain.OrderItem {
	t.Helper()
	price, err := domain.NewMoney(decimal.NewFromFloat(amount), currency)
	require.NoError(t, err)
	item, err := domain.NewOrderItem(uuid.New(), name, price, quantity)
	require.NoError(t, err)
	return item
}

func pendingEvents(t *testing.T, store *outbox.MemStore) []contracts.Event {
	t.Helper()
	records, err := store.FetchPending(context.Background(), 100)
	require.NoError(t, err)
	events := make([]contracts.Event, 0, len(records))
	for _, rec := range records {
		event, err := contracts.DecodeEvent(rec.Payload)
		require.NoError(t, err)
		assert.Equal(t, event.EventID, rec.EventID)
		assert.Equal(t, event.OrderID, rec.Key)
		events = append(events, event)
	}
	return events
}

func TestCreateOrderPersistsAndQueuesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, uuid.New(), []domain.OrderItem{
		testItem(t, "Keyboard", 49.90, "USD", 1),
		testItem(t, "Mouse", 19.95, "USD", 2),
	}, uuid.Nil)
	require.NoError(t, err)

	stored, err := f.repo.Get(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Version())
	assert.Equal(t, "89.80", stored.TotalAmount().Amount().StringFixed(2))

	events := pendingEvents(t, f.store)
	require.Len(t, events, 1)
	assert.Equal(t, contracts.EventOrderCreated, events[0].EventType)
	assert.Equal(t, order.ID().String(), events[0].OrderID)
	assert.Equal(t, 0, events[0].EventVersion)
	assert.Equal(t, 1, f.waker.n)
}

func TestCreateOrderValidationAbortsBeforePersistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, uuid.New(), []domain.OrderItem{
		testItem(t, "Keyboard", 49.90, "USD", 1),
		testItem(t, "Клавиатура", 4990, "RUB", 1),
	}, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)

	events := pendingEvents(t, f.store)
	assert.Empty(t, events)
	assert.Equal(t, 0, f.waker.n)
}

func TestAddItemQueuesEventWithBumpedVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, uuid.New(),
		[]domain.OrderItem{testItem(t, "Keyboard", 49.90, "USD", 1)}, uuid.Nil)
	require.NoError(t, err)

	updated, err := f.svc.AddItem(ctx, order.ID(), testItem(t, "Mouse", 19.95, "USD", 1), uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version())

	events := pendingEvents(t, f.store)
	require.Len(t, events, 2)
	assert.Equal(t, contracts.EventOrderItemAdded, events[1].EventType)
	assert.Equal(t, 1, events[1].EventVersion)
}

func TestChangeStatusThreadsCorrelationID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	correlation := uuid.New()

	order, err := f.svc.CreateOrder(ctx, uuid.New(),
		[]domain.OrderItem{testItem(t, "Keyboard", 49.90, "USD", 1)}, correlation)
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, order.ID(), domain.OrderStatusValidated, correlation)
	require.NoError(t, err)

	events := pendingEvents(t, f.store)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, correlation.String(), event.CorrelationID)
	}
	assert.Equal(t, "VALIDATED", events[1].Status)
}

func TestChangeStatusRejectsIllegalEdgeWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, uuid.New(),
		[]domain.OrderItem{testItem(t, "Keyboard", 49.90, "USD", 1)}, uuid.Nil)
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, order.ID(), domain.OrderStatusPaid, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.repo.Get(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, stored.Status())
	assert.Len(t, pendingEvents(t, f.store), 1) // only order.created
}

func TestChangeStatusUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ChangeStatus(context.Background(), uuid.New(), domain.OrderStatusValidated, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// conflictRepo simulates a concurrent writer that moved the version between
// this operation's read and its update.
type conflictRepo struct {
	domain.OrderRepository
}

func (r *conflictRepo) Update(ctx context.Context, order *domain.Order) error {
	return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, order.ID())
}

func TestConcurrencyConflictSurfacedUnretried(t *testing.T) {
	mem := storage.NewMemRepository()
	store := outbox.NewMemStore()
	waker := &countingWaker{}
	svc := New(&conflictRepo{OrderRepository: mem}, store, nil, waker, "orders.events", logging.New("test"))
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, uuid.New(),
		[]domain.OrderItem{testItem(t, "Keyboard", 49.90, "USD", 1)}, uuid.Nil)
	require.NoError(t, err)
	wakesAfterCreate := waker.n

	_, err = svc.ChangeStatus(ctx, order.ID(), domain.OrderStatusValidated, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	// no event queued, no wake for the failed mutation
	records, err := store.FetchPending(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, wakesAfterCreate, waker.n)
}

// the broker being down is invisible to callers: the mutation is durable and
// the event waits in the outbox.
func TestMutationSucceedsWithBrokerDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, uuid.New(),
		[]domain.OrderItem{testItem(t, "Keyboard", 49.90, "USD", 1)}, uuid.Nil)
	require.NoError(t, err)

	pub := &timeoutPublisher{}
	d := outbox.NewDispatcher(f.store, pub, logging.New("test"), nil, outbox.DispatcherConfig{
		Interval:       10 * time.Millisecond,
		PublishTimeout: 20 * time.Millisecond,
	})

	// the dispatcher cannot deliver, yet the operation already succeeded and
	// the record survives for a later retry
	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	go d.Run(runCtx)
	d.Wake()
	<-runCtx.Done()

	n, err := f.store.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.svc.GetOrder(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, stored.Status())
}

type timeoutPublisher struct{}

func (p *timeoutPublisher) Connect(ctx context.Context) error    { return nil }
func (p *timeoutPublisher) Disconnect(ctx context.Context) error { return nil }
func (p *timeoutPublisher) HealthCheck(ctx context.Context) bool { return false }
func (p *timeoutPublisher) Publish(ctx context.Context, topic, key string, value []byte, timeout time.Duration) error {
	return outbox.ErrPublishTimeout
}

func TestGetUserOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	orders, err := f.svc.GetUserOrders(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = f.svc.CreateOrder(ctx, userID,
		[]domain.OrderItem{testItem(t, "Keyboard", 49.90, "USD", 1)}, uuid.Nil)
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, uuid.New(),
		[]domain.OrderItem{testItem(t, "Mouse", 19.95, "USD", 1)}, uuid.Nil)
	require.NoError(t, err)

	orders, err = f.svc.GetUserOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, userID, orders[0].UserID())
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
