package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is one attempt to pay for a reservation. A failed attempt is
// never reused; retries mint a new pending payment, so the rows form an
// append-only audit of every attempt.
type Payment struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ReservationID string        `json:"reservation_id"`
	Amount        int64         `json:"amount"`
	Status        PaymentStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
}

func (p *Payment) IsTerminal() bool {
	return p.Status != PaymentStatusPending
}
