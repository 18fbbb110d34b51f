package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vogiaan1904/ticketbottle-reservation/config"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka/producer"
	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	repository "github.com/vogiaan1904/ticketbottle-reservation/internal/repository/mysql"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/lock"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

// ReservationService manages seat holds. Reserving runs under the
// seat's distributed lock so concurrent claims on one seat serialize;
// the conditional seat update in the store is the backstop for the rare
// case of a lapsed lease.
type ReservationService interface {
	Reserve(ctx context.Context, in ReserveInput) (*models.Reservation, error)
	Get(ctx context.Context, userID, id string) (*models.Reservation, error)
	// Cancel releases a temporary hold and frees the seat. Confirmed and
	// already-cancelled reservations are refused.
	Cancel(ctx context.Context, in CancelReservationInput) error
	ListSeats(ctx context.Context, scheduleID string) ([]models.Seat, error)
	// Confirm flips a still-valid temporary hold to confirmed; payment
	// drives this, users never call it directly.
	Confirm(ctx context.Context, resv *models.Reservation, paymentID string, now time.Time) error
	// ExpireHolds cancels temporary holds past their window and returns
	// how many it reclaimed.
	ExpireHolds(ctx context.Context, limit int) (int, error)
}

type implReservationService struct {
	l         logger.Logger
	seatRepo  repository.SeatRepository
	resvRepo  repository.ReservationRepository
	admission AdmissionService
	locker    lock.Locker
	producer  producer.Producer
	cfg       config.ReservationConfig
}

func NewReservationService(
	l logger.Logger,
	seatRepo repository.SeatRepository,
	resvRepo repository.ReservationRepository,
	admission AdmissionService,
	locker lock.Locker,
	producer producer.Producer,
	cfg config.ReservationConfig,
) ReservationService {
	return &implReservationService{
		l:         l,
		seatRepo:  seatRepo,
		resvRepo:  resvRepo,
		admission: admission,
		locker:    locker,
		producer:  producer,
		cfg:       cfg,
	}
}

func (s *implReservationService) Reserve(ctx context.Context, in ReserveInput) (*models.Reservation, error) {
	token, err := s.admission.ValidateActive(ctx, in.TokenID, in.EntryToken)
	if err != nil {
		return nil, err
	}
	if token.UserID != in.UserID {
		return nil, appErrors.ErrInvalidToken
	}

	var resv *models.Reservation
	err = s.locker.WithLock(ctx, "seat:"+in.SeatID, lock.Options{}, func(ctx context.Context) error {
		seat, err := s.seatRepo.FindByID(ctx, in.SeatID)
		if err != nil {
			return err
		}
		if seat.Status == models.SeatStatusConfirmed {
			return appErrors.ErrSeatTaken
		}
		if !seat.Reservable() {
			return appErrors.ErrSeatNotReservable
		}

		now := time.Now()

		active, err := s.resvRepo.FindActiveBySeat(ctx, seat.ID, now)
		if err != nil {
			return err
		}
		if active != nil {
			if active.Status == models.ReservationStatusConfirmed {
				return appErrors.ErrSeatTaken
			}
			return appErrors.ErrSeatHeld
		}

		resv = &models.Reservation{
			ID:         uuid.New().String(),
			UserID:     in.UserID,
			ConcertID:  seat.ConcertID,
			SeatID:     seat.ID,
			SeatNumber: seat.SeatNumber,
			Price:      seat.Price,
			Status:     models.ReservationStatusTemporary,
			ReservedAt: now,
			ExpiresAt:  now.Add(s.cfg.HoldWindow),
		}

		return s.resvRepo.CreateTemporary(ctx, resv)
	})
	if err != nil {
		return nil, err
	}

	_ = s.producer.PublishReservationCreated(ctx, reservationEvent(resv, false))
	_ = s.producer.PublishSeatStatusChanged(ctx, kafka.SeatStatusChangedEvent{
		SeatID:    resv.SeatID,
		ConcertID: resv.ConcertID,
		Status:    string(models.SeatStatusReserved),
	})

	return resv, nil
}

func (s *implReservationService) Get(ctx context.Context, userID, id string) (*models.Reservation, error) {
	resv, err := s.resvRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if resv.UserID != userID {
		return nil, appErrors.ErrReservationNotOwned
	}

	return resv, nil
}

func (s *implReservationService) Cancel(ctx context.Context, in CancelReservationInput) error {
	resv, err := s.resvRepo.FindByID(ctx, in.ReservationID)
	if err != nil {
		return err
	}
	if resv.UserID != in.UserID {
		return appErrors.ErrReservationNotOwned
	}
	if !resv.IsTemporary() {
		return appErrors.ErrReservationState
	}

	reason := in.Reason
	if reason == "" {
		reason = "cancelled by user"
	}

	err = s.locker.WithLock(ctx, "reservation:"+resv.ID, lock.Options{}, func(ctx context.Context) error {
		return s.resvRepo.Cancel(ctx, resv.ID, reason, time.Now())
	})
	if err != nil {
		return err
	}

	resv.Status = models.ReservationStatusCancelled
	s.publishCancelled(ctx, resv, false)

	return nil
}

func (s *implReservationService) ListSeats(ctx context.Context, scheduleID string) ([]models.Seat, error) {
	return s.seatRepo.FindBySchedule(ctx, scheduleID)
}

func (s *implReservationService) Confirm(ctx context.Context, resv *models.Reservation, paymentID string, now time.Time) error {
	if err := s.resvRepo.Confirm(ctx, resv.ID, paymentID, now); err != nil {
		return err
	}

	resv.Status = models.ReservationStatusConfirmed
	resv.ConfirmedAt = &now
	resv.PaymentID = paymentID

	_ = s.producer.PublishReservationConfirmed(ctx, reservationEvent(resv, false))
	_ = s.producer.PublishSeatStatusChanged(ctx, kafka.SeatStatusChangedEvent{
		SeatID:    resv.SeatID,
		ConcertID: resv.ConcertID,
		Status:    string(models.SeatStatusConfirmed),
	})

	return nil
}

func (s *implReservationService) ExpireHolds(ctx context.Context, limit int) (int, error) {
	now := time.Now()

	expired, err := s.resvRepo.FindExpiredTemporary(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		resv := &expired[i]

		if err := s.resvRepo.Cancel(ctx, resv.ID, "hold expired", now); err != nil {
			// Lost the race to a payment or an explicit cancel; fine
			// either way.
			if err == appErrors.ErrReservationState {
				continue
			}
			s.l.Warnf(ctx, "service.implReservationService.ExpireHolds: %s: %v", resv.ID, err)
			continue
		}

		resv.Status = models.ReservationStatusCancelled
		s.publishCancelled(ctx, resv, true)
		count++
	}

	return count, nil
}

func (s *implReservationService) publishCancelled(ctx context.Context, resv *models.Reservation, expired bool) {
	_ = s.producer.PublishReservationCancelled(ctx, reservationEvent(resv, expired))
	_ = s.producer.PublishSeatStatusChanged(ctx, kafka.SeatStatusChangedEvent{
		SeatID:    resv.SeatID,
		ConcertID: resv.ConcertID,
		Status:    string(models.SeatStatusAvailable),
	})
}

func reservationEvent(resv *models.Reservation, expired bool) kafka.ReservationEvent {
	return kafka.ReservationEvent{
		ReservationID: resv.ID,
		UserID:        resv.UserID,
		ConcertID:     resv.ConcertID,
		SeatID:        resv.SeatID,
		SeatNumber:    resv.SeatNumber,
		Price:         resv.Price,
		Status:        string(resv.Status),
		Expired:       expired,
	}
}
