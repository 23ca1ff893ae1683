package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMoney(t *testing.T, amount float64, currency string) Money {
	t.Helper()
	m, err := NewMoney(decimal.NewFromFloat(amount), currency)
	require.NoError(t, err)
	return m
}

func mustItem(t *testing.T, name string, amount float64, currency string, quantity int) OrderItem {
	t.Helper()
	item, err := NewOrderItem(uuid.New(), name, mustMoney(t, amount, currency), quantity)
	require.NoError(t, err)
	return item
}

func TestNewOrderItemValidation(t *testing.T) {
	price := mustMoney(t, 9.99, "USD")

	_, err := NewOrderItem(uuid.Nil, "Widget", price, 1)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewOrderItem(uuid.New(), "", price, 1)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewOrderItem(uuid.New(), strings.Repeat("x", 101), price, 1)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewOrderItem(uuid.New(), "Widget", price, 0)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewOrderItem(uuid.New(), "Widget", price, -2)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestLineTotal(t *testing.T) {
	item := mustItem(t, "Widget", 12.50, "USD", 3)
	total := item.LineTotal()
	assert.Equal(t, "37.50", total.Amount().StringFixed(2))
	assert.Equal(t, "USD", total.Currency())
}
