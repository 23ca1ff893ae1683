package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderID = uuid.UUID
type UserID = uuid.UUID

// Order is the aggregate root. All mutations go through its methods so the
// invariants hold at every step: at least one item, a single currency,
// total equal to the sum of line totals, and a version that grows by one on
// every successful mutation. The version doubles as the optimistic-locking
// token for repositories and the deduplication aid for event emission.
type Order struct {
	id          OrderID
	userID      UserID
	items       []OrderItem
	status      OrderStatus
	totalAmount Money
	version     int
	createdAt   time.Time
}

// NewOrder is the factory for a fresh aggregate: status CREATED, version 0,
// total computed from the items.
func NewOrder(userID UserID, items []OrderItem) (*Order, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidValue)
	}
	total, err := sumLineTotals(items)
	if err != nil {
		return nil, err
	}
	return &Order{
		id:          uuid.New(),
		userID:      userID,
		items:       append([]OrderItem(nil), items...),
		status:      OrderStatusCreated,
		totalAmount: total,
		version:     0,
		createdAt:   time.Now().UTC(),
	}, nil
}

func sumLineTotals(items []OrderItem) (Money, error) {
	if len(items) == 0 {
		return Money{}, fmt.Errorf("%w: order must have at least one item", ErrInvalidValue)
	}
	total := items[0].LineTotal()
	for _, it := range items[1:] {
		var err error
		total, err = total.Add(it.LineTotal())
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// Rehydrate rebuilds a persisted aggregate. Repositories are the intended
// caller; the construction invariants are re-checked on the way in.
func Rehydrate(id OrderID, userID UserID, items []OrderItem, status OrderStatus, version int, createdAt time.Time) (*Order, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, fmt.Errorf("%w: order and user ids are required", ErrInvalidValue)
	}
	if _, ok := statusTransitions[status]; !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidValue, status)
	}
	if version < 0 {
		return nil, fmt.Errorf("%w: version must not be negative, got %d", ErrInvalidValue, version)
	}
	total, err := sumLineTotals(items)
	if err != nil {
		return nil, err
	}
	return &Order{
		id:          id,
		userID:      userID,
		items:       append([]OrderItem(nil), items...),
		status:      status,
		totalAmount: total,
		version:     version,
		createdAt:   createdAt,
	}, nil
}

func (o *Order) ID() OrderID          { return o.id }
func (o *Order) UserID() UserID       { return o.userID }
func (o *Order) Status() OrderStatus  { return o.status }
func (o *Order) TotalAmount() Money   { return o.totalAmount }
func (o *Order) Version() int         { return o.version }
func (o *Order) CreatedAt() time.Time { return o.createdAt }

// Items returns a copy; callers cannot reach into the aggregate.
func (o *Order) Items() []OrderItem {
	return append([]OrderItem(nil), o.items...)
}

// AddItem appends a line in the order's currency, recomputes the total and
// bumps the version.
func (o *Order) AddItem(item OrderItem) error {
	if cur := o.totalAmount.Currency(); item.UnitPrice().Currency() != cur {
		return fmt.Errorf("%w: order is in %s, item is in %s", ErrCurrencyMismatch, cur, item.UnitPrice().Currency())
	}
	total, err := o.totalAmount.Add(item.LineTotal())
	if err != nil {
		return err
	}
	o.items = append(o.items, item)
	o.totalAmount = total
	o.version++
	return nil
}

// ChangeStatus moves the order along the lifecycle graph. Any edge missing
// from the table is rejected, including re-requests of a terminal status.
func (o *Order) ChangeStatus(next OrderStatus) error {
	if _, ok := statusTransitions[next]; !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidValue, next)
	}
	if !CanTransition(o.status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.status, next)
	}
	o.status = next
	o.version++
	return nil
}
