package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an immutable amount in a single currency. Amounts are kept with
// two decimal places; every operation returns a freshly rounded value.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney builds a Money from a positive amount and a 3-letter currency
// code. The code is normalized to upper case.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Money{}, fmt.Errorf("%w: amount must be greater than zero, got %s", ErrInvalidValue, amount)
	}
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if !validCurrency(cur) {
		return Money{}, fmt.Errorf("%w: currency must be a 3-letter code, got %q", ErrInvalidValue, currency)
	}
	return Money{amount: amount.Round(2), currency: cur}, nil
}

// NewMoneyFromFloat is a convenience constructor for API boundaries.
func NewMoneyFromFloat(amount float64, currency string) (Money, error) {
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

// Add returns m + other. Both operands must share one currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount).Round(2), currency: m.currency}, nil
}

// MultiplyInt returns m scaled by a positive whole factor.
func (m Money) MultiplyInt(factor int) (Money, error) {
	if factor <= 0 {
		return Money{}, fmt.Errorf("%w: factor must be greater than zero, got %d", ErrInvalidValue, factor)
	}
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(factor))).Round(2), currency: m.currency}, nil
}

func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}
