package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/ticketbottle-reservation/config"
	kafka "github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka"
	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/lock"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

type paymentFixture struct {
	*reservationFixture
	svc      PaymentService
	payments *fakePaymentRepo
	balances *fakeBalanceRepo
}

func newPaymentFixture(t *testing.T, seats ...models.Seat) *paymentFixture {
	t.Helper()

	l := logger.InitializeTestZapLogger()
	prod := newCapturingProducer()
	seatRepo := newFakeSeatRepo(seats...)
	resvRepo := newFakeReservationRepo(seatRepo)
	paymentRepo := newFakePaymentRepo()
	balanceRepo := newFakeBalanceRepo()
	locker := newFakeLocker()

	admission := NewAdmissionService(
		l,
		newFakeTokenRepo(),
		locker,
		prod,
		config.QueueConfig{MaxActive: 10, ActiveTTL: 10 * time.Minute, SecondsPerSlot: 60},
		config.JWTConfig{Secret: "test-secret", Expiry: 10 * time.Minute},
	)
	reservations := NewReservationService(
		l, seatRepo, resvRepo, admission, locker, prod,
		config.ReservationConfig{HoldWindow: 5 * time.Minute},
	)

	return &paymentFixture{
		reservationFixture: &reservationFixture{
			svc:       reservations,
			admission: admission,
			seats:     seatRepo,
			resvs:     resvRepo,
			locker:    locker,
			prod:      prod,
		},
		svc:      NewPaymentService(l, paymentRepo, balanceRepo, reservations, admission, locker, prod),
		payments: paymentRepo,
		balances: balanceRepo,
	}
}

// reserve admits the user and places a hold on the seat.
func (f *paymentFixture) reserve(t *testing.T, userID, seatID string) (models.WaitingToken, *models.Reservation) {
	t.Helper()

	token := f.admit(t, userID)
	resv, err := f.reservationFixture.svc.Reserve(context.Background(), ReserveInput{
		UserID:     userID,
		TokenID:    token.ID,
		EntryToken: token.EntryToken,
		SeatID:     seatID,
	})
	require.NoError(t, err)

	return token, resv
}

func TestPaymentHappyPath(t *testing.T) {
	f := newPaymentFixture(t, testSeat("s1"))
	ctx := context.Background()

	_, err := f.balances.Charge(ctx, "user-1", 150000, "top-up")
	require.NoError(t, err)

	token, resv := f.reserve(t, "user-1", "s1")

	out, err := f.svc.Process(ctx, ProcessPaymentInput{
		UserID:        "user-1",
		TokenID:       token.ID,
		EntryToken:    token.EntryToken,
		ReservationID: resv.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, out.Payment.Status)
	assert.Equal(t, int64(100000), out.Payment.Amount)
	require.NotNil(t, out.Payment.PaidAt)
	assert.Equal(t, models.ReservationStatusConfirmed, out.Reservation.Status)
	assert.Equal(t, out.Payment.ID, out.Reservation.PaymentID)

	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), balance.Amount)

	seat, err := f.seats.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SeatStatusConfirmed, seat.Status)

	// Token is released on success.
	_, err = f.admission.Status(ctx, token.ID)
	assert.ErrorIs(t, err, appErrors.ErrTokenNotFound)

	assert.Equal(t, 1, f.prod.published(kafka.TopicPaymentCompleted))
	assert.Equal(t, 1, f.prod.published(kafka.TopicReservationConfirmed))
}

func TestPaymentInsufficientBalance(t *testing.T) {
	f := newPaymentFixture(t, testSeat("s1"))
	ctx := context.Background()

	_, err := f.balances.Charge(ctx, "user-1", 50000, "top-up")
	require.NoError(t, err)

	token, resv := f.reserve(t, "user-1", "s1")

	_, err = f.svc.Process(ctx, ProcessPaymentInput{
		UserID:        "user-1",
		TokenID:       token.ID,
		EntryToken:    token.EntryToken,
		ReservationID: resv.ID,
	})

	var procErr *appErrors.PaymentProcessError
	require.ErrorAs(t, err, &procErr)
	assert.ErrorIs(t, procErr.Cause, appErrors.ErrInsufficientBalance)

	p, err := f.payments.FindByID(ctx, procErr.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)

	// Nothing was taken and the hold survives for a retry.
	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), balance.Amount)

	got, err := f.resvs.FindByID(ctx, resv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusTemporary, got.Status)

	// The admission slot is given up either way.
	_, err = f.admission.Status(ctx, token.ID)
	assert.ErrorIs(t, err, appErrors.ErrTokenNotFound)

	assert.Equal(t, 1, f.prod.published(kafka.TopicPaymentFailed))
}

func TestPaymentConfirmFailureRefunds(t *testing.T) {
	f := newPaymentFixture(t, testSeat("s1"))
	ctx := context.Background()

	_, err := f.balances.Charge(ctx, "user-1", 150000, "top-up")
	require.NoError(t, err)

	token, resv := f.reserve(t, "user-1", "s1")

	f.resvs.confirmErr = fmt.Errorf("store unavailable")

	_, err = f.svc.Process(ctx, ProcessPaymentInput{
		UserID:        "user-1",
		TokenID:       token.ID,
		EntryToken:    token.EntryToken,
		ReservationID: resv.ID,
	})

	var procErr *appErrors.PaymentProcessError
	require.ErrorAs(t, err, &procErr)

	p, err := f.payments.FindByID(ctx, procErr.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, p.Status)

	// Debit was compensated.
	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), balance.Amount)

	history, err := f.balances.History(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.BalanceEntryCharge, history[0].Type)
	assert.Contains(t, history[0].Description, "refund")
}

func TestPaymentExpiredHold(t *testing.T) {
	f := newPaymentFixture(t, testSeat("s1"))
	ctx := context.Background()

	_, err := f.balances.Charge(ctx, "user-1", 150000, "top-up")
	require.NoError(t, err)

	token, resv := f.reserve(t, "user-1", "s1")

	f.resvs.mu.Lock()
	f.resvs.reservations[resv.ID].ExpiresAt = time.Now().Add(-time.Second)
	f.resvs.mu.Unlock()

	_, err = f.svc.Process(ctx, ProcessPaymentInput{
		UserID:        "user-1",
		TokenID:       token.ID,
		EntryToken:    token.EntryToken,
		ReservationID: resv.ID,
	})
	assert.ErrorIs(t, err, appErrors.ErrReservationExpired)

	// No payment row should have been debited.
	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), balance.Amount)
}

func TestPaymentSecondAttemptAfterSuccess(t *testing.T) {
	f := newPaymentFixture(t, testSeat("s1"))
	ctx := context.Background()

	_, err := f.balances.Charge(ctx, "user-1", 300000, "top-up")
	require.NoError(t, err)

	token, resv := f.reserve(t, "user-1", "s1")

	in := ProcessPaymentInput{
		UserID:        "user-1",
		TokenID:       token.ID,
		EntryToken:    token.EntryToken,
		ReservationID: resv.ID,
	}

	_, err = f.svc.Process(ctx, in)
	require.NoError(t, err)

	// The token is gone, so a replay cannot even enter the saga.
	_, err = f.svc.Process(ctx, in)
	assert.ErrorIs(t, err, appErrors.ErrTokenNotFound)

	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(200000), balance.Amount)
}

func TestPaymentInFlight(t *testing.T) {
	f := newPaymentFixture(t, testSeat("s1"))
	ctx := context.Background()

	token, resv := f.reserve(t, "user-1", "s1")

	// Hold the saga lock as a concurrent attempt would.
	acquired := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.locker.WithLock(ctx, fmt.Sprintf("payment:%s:%s", "user-1", resv.ID), lock.Options{}, func(context.Context) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired
	defer close(release)

	_, err := f.svc.Process(ctx, ProcessPaymentInput{
		UserID:        "user-1",
		TokenID:       token.ID,
		EntryToken:    token.EntryToken,
		ReservationID: resv.ID,
	})
	assert.ErrorIs(t, err, appErrors.ErrPaymentInFlight)
}

func TestPaymentWrongOwner(t *testing.T) {
	f := newPaymentFixture(t, testSeat("s1"), testSeat("s2"))
	ctx := context.Background()

	_, resv := f.reserve(t, "user-1", "s1")
	other := f.admit(t, "user-2")

	_, err := f.svc.Process(ctx, ProcessPaymentInput{
		UserID:        "user-2",
		TokenID:       other.ID,
		EntryToken:    other.EntryToken,
		ReservationID: resv.ID,
	})
	assert.ErrorIs(t, err, appErrors.ErrReservationNotOwned)
}

func TestPaymentProcessErrorUnwraps(t *testing.T) {
	cause := appErrors.ErrInsufficientBalance
	err := &appErrors.PaymentProcessError{PaymentID: "p1", Cause: cause}

	assert.True(t, errors.Is(err, appErrors.ErrInsufficientBalance))
	assert.Contains(t, err.Error(), "insufficient balance")
}
