package domain

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// OrderItem is a line inside the Order aggregate. It has no identity of its
// own and is immutable after construction; quantity is discrete and never
// rounded.
type OrderItem struct {
	productID   uuid.UUID
	productName string
	unitPrice   Money
	quantity    int
}

func NewOrderItem(productID uuid.UUID, productName string, unitPrice Money, quantity int) (OrderItem, error) {
	if productID == uuid.Nil {
		return OrderItem{}, fmt.Errorf("%w: product id is required", ErrInvalidValue)
	}
	if n := utf8.RuneCountInString(productName); n < 1 || n > 100 {
		return OrderItem{}, fmt.Errorf("%w: product name must be 1-100 characters, got %d", ErrInvalidValue, n)
	}
	if quantity <= 0 {
		return OrderItem{}, fmt.Errorf("%w: quantity must be greater than zero, got %d", ErrInvalidValue, quantity)
	}
	return OrderItem{
		productID:   productID,
		productName: productName,
		unitPrice:   unitPrice,
		quantity:    quantity,
	}, nil
}

func (i OrderItem) ProductID() uuid.UUID { return i.productID }
func (i OrderItem) ProductName() string  { return i.productName }
func (i OrderItem) UnitPrice() Money     { return i.unitPrice }
func (i OrderItem) Quantity() int        { return i.quantity }

// LineTotal is unit price times quantity in the item's currency.
func (i OrderItem) LineTotal() Money {
	total, _ := i.unitPrice.MultiplyInt(i.quantity) // quantity validated at construction
	return total
}
