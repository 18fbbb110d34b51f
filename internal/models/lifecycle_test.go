package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitingTokenLifecycle(t *testing.T) {
	now := time.Now()

	waiting := WaitingToken{Status: TokenStatusWaiting}
	assert.True(t, waiting.IsWaiting())
	assert.True(t, waiting.IsLive())
	assert.False(t, waiting.ActiveExpired(now))

	deadline := now.Add(-time.Minute)
	expired := WaitingToken{Status: TokenStatusActive, ActiveDeadline: &deadline}
	assert.True(t, expired.IsActive())
	assert.True(t, expired.ActiveExpired(now))

	future := now.Add(time.Minute)
	active := WaitingToken{Status: TokenStatusActive, ActiveDeadline: &future}
	assert.False(t, active.ActiveExpired(now))

	dead := WaitingToken{Status: TokenStatusExpired}
	assert.False(t, dead.IsLive())
}

func TestReservationLifecycle(t *testing.T) {
	now := time.Now()

	held := Reservation{Status: ReservationStatusTemporary, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, held.IsTemporary())
	assert.True(t, held.Payable(now))
	assert.False(t, held.HoldExpired(now))
	assert.False(t, held.IsTerminal())

	lapsed := Reservation{Status: ReservationStatusTemporary, ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, lapsed.HoldExpired(now))
	assert.False(t, lapsed.Payable(now))

	// Confirmed holds never expire, and are never payable again.
	confirmed := Reservation{Status: ReservationStatusConfirmed, ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, confirmed.HoldExpired(now))
	assert.False(t, confirmed.Payable(now))
	assert.True(t, confirmed.IsTerminal())
}

func TestSeatReservable(t *testing.T) {
	assert.True(t, (&Seat{Status: SeatStatusAvailable}).Reservable())
	assert.True(t, (&Seat{Status: SeatStatusReserved}).Reservable())
	assert.False(t, (&Seat{Status: SeatStatusConfirmed}).Reservable())
	assert.False(t, (&Seat{Status: SeatStatusMaintenance}).Reservable())
}

func TestPaymentTerminal(t *testing.T) {
	assert.False(t, (&Payment{Status: PaymentStatusPending}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusCompleted}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusFailed}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusRefunded}).IsTerminal())
}
