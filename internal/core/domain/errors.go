package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrStockExhausted    = errors.New("stock exhausted")
	ErrSessionBusy       = errors.New("session busy")

	// ErrMalformedLine marks an order line whose beverage reference does not
	// agree with its kind. It is an internal invariant violation.
	ErrMalformedLine = errors.New("malformed order line")
)
