package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/domain"
)

// MemRepository is an in-memory OrderRepository with the same contract as
// the Postgres one, used by tests and database-less runs. Aggregates are
// stored and returned as copies, never shared by reference.
type MemRepository struct {
	mu     sync.Mutex
	orders map[domain.OrderID]*domain.Order
	insert []domain.OrderID
}

func NewMemRepository() *MemRepository {
	return &MemRepository{orders: make(map[domain.OrderID]*domain.Order)}
}

func clone(o *domain.Order) *domain.Order {
	c, err := domain.Rehydrate(o.ID(), o.UserID(), o.Items(), o.Status(), o.Version(), o.CreatedAt())
	if err != nil {
		// A stored aggregate always satisfies its own invariants.
		panic(fmt.Sprintf("clone of valid order failed: %v", err))
	}
	return c
}

func (r *MemRepository) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return clone(order), nil
}

func (r *MemRepository) GetByUser(ctx context.Context, userID domain.UserID) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Order{}
	for _, id := range r.insert {
		if order := r.orders[id]; order.UserID() == userID {
			out = append(out, clone(order))
		}
	}
	return out, nil
}

func (r *MemRepository) Add(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID()]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, order.ID())
	}
	r.orders[order.ID()] = clone(order)
	r.insert = append(r.insert, order.ID())
	return nil
}

func (r *MemRepository) Update(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, order.ID())
	}
	if stored.Version() != order.Version()-1 {
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, order.ID())
	}
	r.orders[order.ID()] = clone(order)
	return nil
}

func (r *MemRepository) Exists(ctx context.Context, id domain.OrderID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[id]
	return ok, nil
}
