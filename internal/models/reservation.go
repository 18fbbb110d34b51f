package models

import "time"

type ReservationStatus string

const (
	ReservationStatusTemporary ReservationStatus = "temporary"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation records a seat hold through its lifecycle: a time-boxed
// temporary claim, then either confirmed by payment or cancelled.
// Terminal states are immutable.
type Reservation struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	ConcertID    string            `json:"concert_id"`
	SeatID       string            `json:"seat_id"`
	SeatNumber   string            `json:"seat_number"`
	Price        int64             `json:"price"`
	Status       ReservationStatus `json:"status"`
	ReservedAt   time.Time         `json:"reserved_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	ConfirmedAt  *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	PaymentID    string            `json:"payment_id,omitempty"`
}

func (r *Reservation) IsTemporary() bool {
	return r.Status == ReservationStatusTemporary
}

func (r *Reservation) IsTerminal() bool {
	return r.Status == ReservationStatusConfirmed || r.Status == ReservationStatusCancelled
}

// HoldExpired reports whether a temporary hold has lapsed. Confirmed
// and cancelled reservations never expire.
func (r *Reservation) HoldExpired(now time.Time) bool {
	return r.Status == ReservationStatusTemporary && now.After(r.ExpiresAt)
}

// Payable reports whether the reservation can still be paid for.
func (r *Reservation) Payable(now time.Time) bool {
	return r.Status == ReservationStatusTemporary && !now.After(r.ExpiresAt)
}
