package errors

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPaymentState    = errors.New("payment is already in a terminal state")
	// ErrPaymentInFlight is returned when a second attempt for the same
	// (user, reservation) pair races a running one.
	ErrPaymentInFlight = errors.New("a payment attempt for this reservation is already in progress")
)

// PaymentProcessError is the single user-facing failure the payment
// saga raises. It records the payment attempt it belongs to and wraps
// the original cause for diagnostics without leaking store or lock
// internals to the caller.
type PaymentProcessError struct {
	PaymentID string
	Cause     error
}

func (e *PaymentProcessError) Error() string {
	return fmt.Sprintf("payment processing failed: %v", e.Cause)
}

func (e *PaymentProcessError) Unwrap() error {
	return e.Cause
}
