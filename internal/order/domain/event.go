package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/LewiysArito/simple-ddd-order-flow/pkg/contracts"
)

// DeriveEvent takes a pure snapshot of the aggregate; it never mutates the
// order or its version. Passing uuid.Nil for the chain ids starts a new
// causal chain with freshly generated identifiers.
func (o *Order) DeriveEvent(eventType string, correlationID, causationID uuid.UUID) contracts.Event {
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	if causationID == uuid.Nil {
		causationID = uuid.New()
	}

	items := make([]contracts.EventItem, 0, len(o.items))
	for _, it := range o.items {
		items = append(items, contracts.EventItem{
			ProductID:   it.ProductID().String(),
			ProductName: it.ProductName(),
			Price:       it.UnitPrice().Amount().InexactFloat64(),
			Currency:    it.UnitPrice().Currency(),
			Quantity:    it.Quantity(),
			Total:       it.LineTotal().Amount().InexactFloat64(),
		})
	}

	return contracts.Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  o.version,
		OccurredOn:    time.Now().UTC(),
		OrderID:       o.id.String(),
		UserID:        o.userID.String(),
		Status:        string(o.status),
		TotalAmount:   o.totalAmount.Amount().InexactFloat64(),
		Currency:      o.totalAmount.Currency(),
		Items:         items,
		CorrelationID: correlationID.String(),
		CausationID:   causationID.String(),
	}
}
