package domain

import "fmt"

type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "CREATED"
	OrderStatusValidated  OrderStatus = "VALIDATED"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusDelivering OrderStatus = "DELIVERING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// statusTransitions is the full lifecycle graph. Terminal states have an
// empty set: no outgoing edges, not even to themselves.
var statusTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusCreated:    {OrderStatusValidated: true, OrderStatusCancelled: true},
	OrderStatusValidated:  {OrderStatusPaid: true, OrderStatusCancelled: true},
	OrderStatusPaid:       {OrderStatusDelivering: true, OrderStatusCancelled: true},
	OrderStatusDelivering: {OrderStatusCompleted: true, OrderStatusCancelled: true},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// ParseOrderStatus validates a raw status string from the API or storage.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if _, ok := statusTransitions[s]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidValue, raw)
	}
	return s, nil
}

// CanTransition reports whether the edge from → to exists in the table.
func CanTransition(from, to OrderStatus) bool {
	return statusTransitions[from][to]
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(s OrderStatus) bool {
	edges, ok := statusTransitions[s]
	return ok && len(edges) == 0
}
