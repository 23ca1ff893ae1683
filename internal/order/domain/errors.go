package domain

import "errors"

var (
	// ErrInvalidValue means a value object failed construction-time validation.
	ErrInvalidValue = errors.New("invalid value")
	// ErrCurrencyMismatch means an operation mixed two different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrInvalidTransition means the requested status change is not in the
	// transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrNotFound            = errors.New("order not found")
	ErrAlreadyExists       = errors.New("order already exists")
	ErrConcurrencyConflict = errors.New("order has been modified by another transaction")
)
