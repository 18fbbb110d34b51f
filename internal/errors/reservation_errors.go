package errors

import "errors"

var (
	ErrSeatNotFound        = errors.New("seat not found")
	ErrSeatTaken           = errors.New("seat already taken")
	ErrSeatHeld            = errors.New("seat temporarily held by another user")
	ErrSeatNotReservable   = errors.New("seat is not open for reservation")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationNotOwned = errors.New("reservation belongs to another user")
	ErrReservationExpired  = errors.New("reservation hold has expired")
	// ErrReservationState covers illegal transitions: confirming a
	// non-temporary or expired reservation, cancelling a terminal one.
	ErrReservationState = errors.New("reservation is not in a valid state for this operation")
)
