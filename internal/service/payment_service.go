package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka/producer"
	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	repository "github.com/vogiaan1904/ticketbottle-reservation/internal/repository/mysql"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/lock"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

// PaymentService runs the payment for a held seat as a saga:
//
//	pending payment -> balance debit -> reservation confirm -> completed
//
// A failure before the debit marks the payment failed; a failure after
// the debit refunds the points and marks it refunded. In both cases the
// reservation keeps its temporary status and its hold window, so the
// user can retry until the hold lapses. The admission token is released
// whenever the saga reaches a terminal state, success or not.
type PaymentService interface {
	Process(ctx context.Context, in ProcessPaymentInput) (*PaymentOutput, error)
	Get(ctx context.Context, userID, id string) (*models.Payment, error)
}

type implPaymentService struct {
	l            logger.Logger
	paymentRepo  repository.PaymentRepository
	balanceRepo  repository.BalanceRepository
	reservations ReservationService
	admission    AdmissionService
	locker       lock.Locker
	producer     producer.Producer
}

func NewPaymentService(
	l logger.Logger,
	paymentRepo repository.PaymentRepository,
	balanceRepo repository.BalanceRepository,
	reservations ReservationService,
	admission AdmissionService,
	locker lock.Locker,
	producer producer.Producer,
) PaymentService {
	return &implPaymentService{
		l:            l,
		paymentRepo:  paymentRepo,
		balanceRepo:  balanceRepo,
		reservations: reservations,
		admission:    admission,
		locker:       locker,
		producer:     producer,
	}
}

func (s *implPaymentService) Process(ctx context.Context, in ProcessPaymentInput) (*PaymentOutput, error) {
	var out *PaymentOutput

	key := fmt.Sprintf("payment:%s:%s", in.UserID, in.ReservationID)
	err := s.locker.WithLock(ctx, key, lock.Options{Strategy: lock.SingleAttempt}, func(ctx context.Context) error {
		var err error
		out, err = s.process(ctx, in)
		return err
	})
	if err != nil {
		if err == lock.ErrLockHeld {
			return nil, appErrors.ErrPaymentInFlight
		}
		return nil, err
	}

	return out, nil
}

func (s *implPaymentService) process(ctx context.Context, in ProcessPaymentInput) (*PaymentOutput, error) {
	token, err := s.admission.ValidateActive(ctx, in.TokenID, in.EntryToken)
	if err != nil {
		return nil, err
	}
	if token.UserID != in.UserID {
		return nil, appErrors.ErrInvalidToken
	}

	resv, err := s.reservations.Get(ctx, in.UserID, in.ReservationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !resv.Payable(now) {
		if resv.HoldExpired(now) {
			return nil, appErrors.ErrReservationExpired
		}
		return nil, appErrors.ErrReservationState
	}

	p := &models.Payment{
		ID:            uuid.New().String(),
		UserID:        in.UserID,
		ReservationID: resv.ID,
		Amount:        resv.Price,
		Status:        models.PaymentStatusPending,
		CreatedAt:     now,
	}
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("seat %s, concert %s", resv.SeatNumber, resv.ConcertID)

	if _, err := s.balanceRepo.Debit(ctx, in.UserID, resv.Price, description); err != nil {
		return nil, s.fail(ctx, p, token.ID, err)
	}

	if err := s.reservations.Confirm(ctx, resv, p.ID, time.Now()); err != nil {
		return nil, s.refund(ctx, p, token.ID, description, err)
	}

	paidAt := time.Now()
	if err := s.paymentRepo.Complete(ctx, p.ID, paidAt); err != nil {
		// Debit and confirmation already landed; leave the pending row
		// for reconciliation rather than unwind a confirmed seat.
		s.l.Errorf(ctx, "service.implPaymentService.process: complete %s: %v", p.ID, err)
		return nil, err
	}
	p.Status = models.PaymentStatusCompleted
	p.PaidAt = &paidAt

	_ = s.producer.PublishPaymentCompleted(ctx, paymentEvent(p))

	if err := s.admission.Release(ctx, token.ID, "payment_done"); err != nil {
		// Sweeper reclaims the slot at its deadline.
		s.l.Warnf(ctx, "service.implPaymentService.process: release token %s: %v", token.ID, err)
	}

	return &PaymentOutput{Payment: p, Reservation: resv}, nil
}

// fail terminates a pre-debit saga: nothing was taken, the hold stays
// temporary, the token is released so the slot frees up.
func (s *implPaymentService) fail(ctx context.Context, p *models.Payment, tokenID string, cause error) error {
	if err := s.paymentRepo.MarkFailed(ctx, p.ID, cause.Error()); err != nil {
		s.l.Errorf(ctx, "service.implPaymentService.fail: %s: %v", p.ID, err)
	}
	p.Status = models.PaymentStatusFailed
	p.FailureReason = cause.Error()

	return s.finishFailed(ctx, p, tokenID, cause)
}

// refund compensates a post-debit failure: the points go back and the
// payment records the refund.
func (s *implPaymentService) refund(ctx context.Context, p *models.Payment, tokenID, description string, cause error) error {
	if _, err := s.balanceRepo.Charge(ctx, p.UserID, p.Amount, "refund: "+description); err != nil {
		// Debited but not refunded: the worst place to stop. Loud log,
		// the history rows carry enough to repair by hand.
		s.l.Errorf(ctx, "service.implPaymentService.refund: charge back %s: %v", p.ID, err)
	}

	if err := s.paymentRepo.MarkRefunded(ctx, p.ID, cause.Error()); err != nil {
		s.l.Errorf(ctx, "service.implPaymentService.refund: %s: %v", p.ID, err)
	}
	p.Status = models.PaymentStatusRefunded
	p.FailureReason = cause.Error()

	return s.finishFailed(ctx, p, tokenID, cause)
}

func (s *implPaymentService) finishFailed(ctx context.Context, p *models.Payment, tokenID string, cause error) error {
	_ = s.producer.PublishPaymentFailed(ctx, paymentEvent(p))

	if err := s.admission.Release(ctx, tokenID, "payment_failed"); err != nil {
		s.l.Warnf(ctx, "service.implPaymentService.finishFailed: release token %s: %v", tokenID, err)
	}

	return &appErrors.PaymentProcessError{PaymentID: p.ID, Cause: cause}
}

func (s *implPaymentService) Get(ctx context.Context, userID, id string) (*models.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, appErrors.ErrPaymentNotFound
	}

	return p, nil
}

func paymentEvent(p *models.Payment) kafka.PaymentEvent {
	return kafka.PaymentEvent{
		PaymentID:     p.ID,
		UserID:        p.UserID,
		ReservationID: p.ReservationID,
		Amount:        p.Amount,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
	}
}
