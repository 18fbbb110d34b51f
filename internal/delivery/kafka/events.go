package kafka

import "time"

// Events published by the reservation service. The sink is
// publish-only: nothing in the payment flow depends on a consumer
// seeing these, they exist for downstream analytics and notification
// services.

type QueueJoinedEvent struct {
	TokenID       string    `json:"token_id"`
	UserID        string    `json:"user_id"`
	Position      int64     `json:"position"`
	EstimatedWait int64     `json:"estimated_wait_sec"`
	JoinedAt      time.Time `json:"joined_at"`
	Timestamp     time.Time `json:"timestamp"`
}

type QueuePromotedEvent struct {
	TokenID        string    `json:"token_id"`
	UserID         string    `json:"user_id"`
	ActivatedAt    time.Time `json:"activated_at"`
	ActiveDeadline time.Time `json:"active_deadline"`
	Timestamp      time.Time `json:"timestamp"`
}

type QueueReleasedEvent struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"` // payment_done, payment_failed, ttl_expired, user_left
	Timestamp time.Time `json:"timestamp"`
}

type SeatStatusChangedEvent struct {
	SeatID    string    `json:"seat_id"`
	ConcertID string    `json:"concert_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ReservationEvent struct {
	ReservationID string    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	ConcertID     string    `json:"concert_id"`
	SeatID        string    `json:"seat_id"`
	SeatNumber    string    `json:"seat_number"`
	Price         int64     `json:"price"`
	Status        string    `json:"status"`
	Expired       bool      `json:"expired,omitempty"` // cancellations only: true when the sweeper expired the hold
	Timestamp     time.Time `json:"timestamp"`
}

type PaymentEvent struct {
	PaymentID     string    `json:"payment_id"`
	UserID        string    `json:"user_id"`
	ReservationID string    `json:"reservation_id"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
