// Package contracts defines the wire shape of order events as other
// services see them on the broker. The message key is the order id, so all
// events for one order land on one partition in emission order.
package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderItemAdded     = "order.item_added"
	EventOrderStatusChanged = "order.status_changed"
)

// Event is an immutable fact about a committed order mutation. EventVersion
// carries the aggregate version at the moment of derivation; together with
// EventID it lets consumers deduplicate redelivered messages.
type Event struct {
	EventID       string      `json:"event_id"`
	EventType     string      `json:"event_type"`
	EventVersion  int         `json:"event_version"`
	OccurredOn    time.Time   `json:"occurred_on"`
	OrderID       string      `json:"order_id"`
	UserID        string      `json:"user_id"`
	Status        string      `json:"status"`
	TotalAmount   float64     `json:"total_amount"`
	Currency      string      `json:"currency"`
	Items         []EventItem `json:"items"`
	CorrelationID string      `json:"correlation_id"`
	CausationID   string      `json:"causation_id"`
}

// EventItem is a flattened line-item snapshot.
type EventItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Quantity    int     `json:"quantity"`
	Total       float64 `json:"total"`
}

// Key is the partitioning and ordering key for the broker message.
func (e Event) Key() string { return e.OrderID }

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a broker message value and checks the mandatory fields.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (e Event) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("event is missing event_id")
	case e.EventType == "":
		return fmt.Errorf("event %s is missing event_type", e.EventID)
	case e.OrderID == "":
		return fmt.Errorf("event %s is missing order_id", e.EventID)
	case e.UserID == "":
		return fmt.Errorf("event %s is missing user_id", e.EventID)
	case e.Status == "":
		return fmt.Errorf("event %s is missing status", e.EventID)
	case e.Currency == "":
		return fmt.Errorf("event %s is missing currency", e.EventID)
	case len(e.Items) == 0:
		return fmt.Errorf("event %s has no items", e.EventID)
	case e.CorrelationID == "" || e.CausationID == "":
		return fmt.Errorf("event %s is missing tracing ids", e.EventID)
	}
	return nil
}
