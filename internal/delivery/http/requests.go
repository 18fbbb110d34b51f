package http

import (
	"time"

	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/service"
)

type issueTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type promoteRequest struct {
	Max int `json:"max" validate:"gte=0"`
}

type reserveRequest struct {
	UserID string `json:"user_id" validate:"required"`
	SeatID string `json:"seat_id" validate:"required"`
}

type cancelReservationRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

type processPaymentRequest struct {
	UserID        string `json:"user_id" validate:"required"`
	ReservationID string `json:"reservation_id" validate:"required"`
}

type chargeRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

type tokenStatusResponse struct {
	TokenID          string     `json:"token_id"`
	UserID           string     `json:"user_id"`
	Status           string     `json:"status"`
	Position         int64      `json:"position"`
	EstimatedWaitSec int64      `json:"estimated_wait_sec"`
	EntryToken       string     `json:"entry_token,omitempty"`
	ActiveDeadline   *time.Time `json:"active_deadline,omitempty"`
}

func newTokenStatusResponse(out *service.TokenStatusOutput) tokenStatusResponse {
	return tokenStatusResponse{
		TokenID:          out.Token.ID,
		UserID:           out.Token.UserID,
		Status:           string(out.Token.Status),
		Position:         out.Position,
		EstimatedWaitSec: out.EstimatedWaitSec,
		EntryToken:       out.Token.EntryToken,
		ActiveDeadline:   out.Token.ActiveDeadline,
	}
}

type queueInfoResponse struct {
	WaitingCount int64 `json:"waiting_count"`
	ActiveCount  int64 `json:"active_count"`
	MaxActive    int   `json:"max_active"`
}

type promoteResponse struct {
	Promoted []tokenStatusResponse `json:"promoted"`
}

type paymentResponse struct {
	Payment     *models.Payment     `json:"payment"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
}
