package domain

import "context"

// OrderRepository is the persistence capability the core depends on.
// Update enforces optimistic concurrency: the stored version must match the
// version the caller last read, else ErrConcurrencyConflict.
type OrderRepository interface {
	Get(ctx context.Context, id OrderID) (*Order, error)
	// GetByUser returns an empty slice, never an error, when the user has no
	// orders.
	GetByUser(ctx context.Context, userID UserID) ([]*Order, error)
	Add(ctx context.Context, order *Order) error
	Update(ctx context.Context, order *Order) error
	Exists(ctx context.Context, id OrderID) (bool, error)
}
