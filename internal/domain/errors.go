package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput is wrapped by every InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPrice is wrapped by every InvalidPriceError.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrColumnExists is returned when a frame column name is already taken.
	ErrColumnExists = errors.New("column already exists")
)

// InvalidInputError reports a malformed observation sequence.
type InvalidInputError struct {
	Index  int
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Index < 0 {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input at bar %d: %s", e.Index, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// InvalidPriceError reports a trade attempt at a non-positive price.
type InvalidPriceError struct {
	Timestamp time.Time
	Price     float64
}

func (e *InvalidPriceError) Error() string {
	if e.Timestamp.IsZero() {
		return fmt.Sprintf("invalid price %v", e.Price)
	}
	return fmt.Sprintf("invalid price %v at %s", e.Price, e.Timestamp.Format(time.RFC3339))
}

func (e *InvalidPriceError) Unwrap() error {
	return ErrInvalidPrice
}
