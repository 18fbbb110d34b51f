package service

import (
	"time"

	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
)

type TokenStatusOutput struct {
	Token            *models.WaitingToken
	Position         int64
	EstimatedWaitSec int64
}

type QueueInfoOutput struct {
	WaitingCount int64
	ActiveCount  int64
	MaxActive    int
}

type ReserveInput struct {
	UserID     string
	TokenID    string
	EntryToken string
	SeatID     string
}

type CancelReservationInput struct {
	UserID        string
	ReservationID string
	Reason        string
}

type ChargeInput struct {
	UserID      string
	Amount      int64
	Description string
}

type ProcessPaymentInput struct {
	UserID        string
	TokenID       string
	EntryToken    string
	ReservationID string
}

type PaymentOutput struct {
	Payment     *models.Payment
	Reservation *models.Reservation
}

type SweeperStatus struct {
	Running    bool
	LastRun    time.Time
	ErrorCount int
}
