// Package service orchestrates one aggregate mutation, its persistence and
// the durable record of its event as a single unit of work. Broker delivery
// is decoupled: once the aggregate and the outbox record are stored, the
// operation has succeeded and a slow or down broker only delays the event.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/domain"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/contracts"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/logging"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/outbox"
)

// TxRunner commits the aggregate write and the outbox insert atomically.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Waker nudges the outbox dispatcher after a commit.
type Waker interface {
	Wake()
}

type OrderService struct {
	repo  domain.OrderRepository
	store outbox.Store
	tx    TxRunner // nil means the repo and store are not transactional
	waker Waker    // optional
	topic string
	log   *logging.Logger
}

func New(repo domain.OrderRepository, store outbox.Store, tx TxRunner, waker Waker, topic string, log *logging.Logger) *OrderService {
	return &OrderService{repo: repo, store: store, tx: tx, waker: waker, topic: topic, log: log}
}

// CreateOrder validates and persists a fresh aggregate and records an
// order.created event. A nil correlation id starts a new causal chain.
func (s *OrderService) CreateOrder(ctx context.Context, userID domain.UserID, items []domain.OrderItem, correlationID uuid.UUID) (*domain.Order, error) {
	order, err := domain.NewOrder(userID, items)
	if err != nil {
		return nil, err
	}
	event := order.DeriveEvent(contracts.EventOrderCreated, correlationID, uuid.Nil)
	if err := s.commit(ctx, func(ctx context.Context) error {
		return s.repo.Add(ctx, order)
	}, event); err != nil {
		return nil, err
	}
	return order, nil
}

// AddItem appends one line to an existing order and records an
// order.item_added event.
func (s *OrderService) AddItem(ctx context.Context, orderID domain.OrderID, item domain.OrderItem, correlationID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.AddItem(item); err != nil {
		return nil, err
	}
	event := order.DeriveEvent(contracts.EventOrderItemAdded, correlationID, uuid.Nil)
	if err := s.commit(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, order)
	}, event); err != nil {
		return nil, err
	}
	return order, nil
}

// ChangeStatus moves an order along its lifecycle and records an
// order.status_changed event. A concurrency conflict is surfaced unretried:
// the caller must re-read and reapply the mutation.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID domain.OrderID, next domain.OrderStatus, correlationID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.ChangeStatus(next); err != nil {
		return nil, err
	}
	event := order.DeriveEvent(contracts.EventOrderStatusChanged, correlationID, uuid.Nil)
	if err := s.commit(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, order)
	}, event); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID domain.OrderID) (*domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}

// GetUserOrders returns an empty slice, never an error, for unknown users.
func (s *OrderService) GetUserOrders(ctx context.Context, userID domain.UserID) ([]*domain.Order, error) {
	return s.repo.GetByUser(ctx, userID)
}

// commit stores the mutated aggregate and its event in one unit of work,
// then wakes the dispatcher. Nothing is published inline: publish failures
// must never turn a durably stored mutation into a caller-visible error.
func (s *OrderService) commit(ctx context.Context, persist func(ctx context.Context) error, event contracts.Event) error {
	fn := func(ctx context.Context) error {
		if err := persist(ctx); err != nil {
			return err
		}
		return s.store.Insert(ctx, event.EventID, s.topic, event.Key(), event)
	}

	var err error
	if s.tx != nil {
		err = s.tx.WithinTx(ctx, fn)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return err
	}

	s.log.Info("order mutation committed", logging.Fields{
		OrderID:       event.OrderID,
		EventID:       event.EventID,
		CorrelationID: event.CorrelationID,
		Step:          event.EventType,
		Status:        event.Status,
	})
	if s.waker != nil {
		s.waker.Wake()
	}
	return nil
}
