package service

import (
	"context"
	"sort"
	"sync"
	"time"

	kafka "github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka/producer"
	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/lock"
	pkgRedis "github.com/vogiaan1904/ticketbottle-reservation/pkg/redis"
)

// In-memory doubles for the stores and the lock manager. They mirror
// the real atomicity guarantees (conditional transitions, single
// balance writer) so the services exercise the same failure paths they
// hit in production.

type fakeTokenRepo struct {
	mu      sync.Mutex
	seq     int64
	tokens  map[string]*models.WaitingToken
	byUser  map[string]string
	waiting []string
	active  map[string]time.Time
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{
		tokens: map[string]*models.WaitingToken{},
		byUser: map[string]string{},
		active: map[string]time.Time{},
	}
}

func (r *fakeTokenRepo) NextSequence(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *fakeTokenRepo) Create(_ context.Context, t *models.WaitingToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tokens[t.ID] = &cp
	r.byUser[t.UserID] = t.ID
	r.waiting = append(r.waiting, t.ID)
	return nil
}

func (r *fakeTokenRepo) Get(_ context.Context, id string) (*models.WaitingToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return nil, pkgRedis.Nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTokenRepo) Update(_ context.Context, t *models.WaitingToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[t.ID]; !ok {
		return pkgRedis.Nil
	}
	cp := *t
	r.tokens[t.ID] = &cp
	return nil
}

func (r *fakeTokenRepo) FindByUser(ctx context.Context, userID string) (*models.WaitingToken, error) {
	r.mu.Lock()
	id, ok := r.byUser[userID]
	r.mu.Unlock()
	if !ok {
		return nil, pkgRedis.Nil
	}
	return r.Get(ctx, id)
}

func (r *fakeTokenRepo) Delete(_ context.Context, t *models.WaitingToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, t.ID)
	delete(r.byUser, t.UserID)
	delete(r.active, t.ID)
	r.removeWaitingLocked(t.ID)
	return nil
}

func (r *fakeTokenRepo) WaitingRank(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.waiting {
		if w == id {
			return int64(i), nil
		}
	}
	return -1, nil
}

func (r *fakeTokenRepo) WaitingCount(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.waiting)), nil
}

func (r *fakeTokenRepo) RemoveWaiting(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeWaitingLocked(id)
	return nil
}

func (r *fakeTokenRepo) PopWaiting(_ context.Context, count int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count > len(r.waiting) {
		count = len(r.waiting)
	}
	ids := append([]string(nil), r.waiting[:count]...)
	r.waiting = r.waiting[count:]
	return ids, nil
}

func (r *fakeTokenRepo) AddActive(_ context.Context, id string, deadline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[id] = deadline
	return nil
}

func (r *fakeTokenRepo) RemoveActive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
	return nil
}

func (r *fakeTokenRepo) ActiveCount(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.active)), nil
}

func (r *fakeTokenRepo) ExpiredActive(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, deadline := range r.active {
		if !deadline.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeTokenRepo) removeWaitingLocked(id string) {
	for i, w := range r.waiting {
		if w == id {
			r.waiting = append(r.waiting[:i], r.waiting[i+1:]...)
			return
		}
	}
}

type fakeSeatRepo struct {
	mu    sync.Mutex
	seats map[string]*models.Seat
}

func newFakeSeatRepo(seats ...models.Seat) *fakeSeatRepo {
	r := &fakeSeatRepo{seats: map[string]*models.Seat{}}
	for i := range seats {
		cp := seats[i]
		r.seats[cp.ID] = &cp
	}
	return r
}

func (r *fakeSeatRepo) FindByID(_ context.Context, id string) (*models.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.seats[id]
	if !ok {
		return nil, appErrors.ErrSeatNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSeatRepo) FindBySchedule(_ context.Context, scheduleID string) ([]models.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Seat
	for _, s := range r.seats {
		if s.ScheduleID == scheduleID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

func (r *fakeSeatRepo) UpdateStatus(_ context.Context, id string, status models.SeatStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.seats[id]
	if !ok {
		return appErrors.ErrSeatNotFound
	}
	s.Status = status
	return nil
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	seats        *fakeSeatRepo
	reservations map[string]*models.Reservation
	confirmErr   error // injected failure for the post-debit path
}

func newFakeReservationRepo(seats *fakeSeatRepo) *fakeReservationRepo {
	return &fakeReservationRepo{
		seats:        seats,
		reservations: map[string]*models.Reservation{},
	}
}

func (r *fakeReservationRepo) CreateTemporary(_ context.Context, resv *models.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seats.mu.Lock()
	seat, ok := r.seats.seats[resv.SeatID]
	if !ok || seat.Status != models.SeatStatusAvailable {
		r.seats.mu.Unlock()
		return appErrors.ErrSeatHeld
	}
	seat.Status = models.SeatStatusReserved
	r.seats.mu.Unlock()

	cp := *resv
	r.reservations[resv.ID] = &cp
	return nil
}

func (r *fakeReservationRepo) FindByID(_ context.Context, id string) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resv, ok := r.reservations[id]
	if !ok {
		return nil, appErrors.ErrReservationNotFound
	}
	cp := *resv
	return &cp, nil
}

func (r *fakeReservationRepo) FindActiveBySeat(_ context.Context, seatID string, now time.Time) (*models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resv := range r.reservations {
		if resv.SeatID != seatID {
			continue
		}
		if resv.Status == models.ReservationStatusConfirmed ||
			(resv.Status == models.ReservationStatusTemporary && resv.ExpiresAt.After(now)) {
			cp := *resv
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeReservationRepo) Confirm(_ context.Context, id, paymentID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.confirmErr != nil {
		return r.confirmErr
	}
	resv, ok := r.reservations[id]
	if !ok {
		return appErrors.ErrReservationNotFound
	}
	if resv.Status != models.ReservationStatusTemporary || !resv.ExpiresAt.After(now) {
		return appErrors.ErrReservationState
	}
	resv.Status = models.ReservationStatusConfirmed
	resv.ConfirmedAt = &now
	resv.PaymentID = paymentID
	_ = r.seats.UpdateStatus(context.Background(), resv.SeatID, models.SeatStatusConfirmed)
	return nil
}

func (r *fakeReservationRepo) Cancel(_ context.Context, id, reason string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resv, ok := r.reservations[id]
	if !ok {
		return appErrors.ErrReservationNotFound
	}
	if resv.Status != models.ReservationStatusTemporary {
		return appErrors.ErrReservationState
	}
	resv.Status = models.ReservationStatusCancelled
	resv.CancelledAt = &now
	resv.CancelReason = reason
	_ = r.seats.UpdateStatus(context.Background(), resv.SeatID, models.SeatStatusAvailable)
	return nil
}

func (r *fakeReservationRepo) FindExpiredTemporary(_ context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Reservation
	for _, resv := range r.reservations {
		if resv.Status == models.ReservationStatusTemporary && !resv.ExpiresAt.After(now) {
			out = append(out, *resv)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakePaymentRepo struct {
	mu          sync.Mutex
	payments    map[string]*models.Payment
	completeErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*models.Payment{}}
}

func (r *fakePaymentRepo) Create(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, appErrors.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) Complete(_ context.Context, id string, paidAt time.Time) error {
	if r.completeErr != nil {
		return r.completeErr
	}
	return r.transition(id, models.PaymentStatusCompleted, "", &paidAt)
}

func (r *fakePaymentRepo) MarkFailed(_ context.Context, id, reason string) error {
	return r.transition(id, models.PaymentStatusFailed, reason, nil)
}

func (r *fakePaymentRepo) MarkRefunded(_ context.Context, id, reason string) error {
	return r.transition(id, models.PaymentStatusRefunded, reason, nil)
}

func (r *fakePaymentRepo) transition(id string, status models.PaymentStatus, reason string, paidAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return appErrors.ErrPaymentState
	}
	p.Status = status
	p.FailureReason = reason
	p.PaidAt = paidAt
	return nil
}

type fakeBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]int64
	history  []models.BalanceEntry
}

func newFakeBalanceRepo() *fakeBalanceRepo {
	return &fakeBalanceRepo{balances: map[string]int64{}}
}

func (r *fakeBalanceRepo) Get(_ context.Context, userID string) (*models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &models.Balance{UserID: userID, Amount: r.balances[userID]}, nil
}

func (r *fakeBalanceRepo) Charge(_ context.Context, userID string, amount int64, description string) (*models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] += amount
	r.appendLocked(userID, amount, models.BalanceEntryCharge, description)
	return &models.Balance{UserID: userID, Amount: r.balances[userID]}, nil
}

func (r *fakeBalanceRepo) Debit(_ context.Context, userID string, amount int64, description string) (*models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[userID] < amount {
		return nil, appErrors.ErrInsufficientBalance
	}
	r.balances[userID] -= amount
	r.appendLocked(userID, amount, models.BalanceEntryUse, description)
	return &models.Balance{UserID: userID, Amount: r.balances[userID]}, nil
}

func (r *fakeBalanceRepo) History(_ context.Context, userID string, limit int) ([]models.BalanceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BalanceEntry
	for i := len(r.history) - 1; i >= 0 && len(out) < limit; i-- {
		if r.history[i].UserID == userID {
			out = append(out, r.history[i])
		}
	}
	return out, nil
}

func (r *fakeBalanceRepo) appendLocked(userID string, amount int64, entryType models.BalanceEntryType, description string) {
	r.history = append(r.history, models.BalanceEntry{
		ID:          int64(len(r.history) + 1),
		UserID:      userID,
		Amount:      amount,
		Type:        entryType,
		Description: description,
		CreatedAt:   time.Now(),
	})
}

type fakeUserRepo struct {
	users map[string]bool
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if !r.users[id] {
		return nil, appErrors.ErrUserNotFound
	}
	return &models.User{ID: id}, nil
}

// fakeLocker serializes per key with local mutexes; SingleAttempt maps
// to TryLock like the Redis manager's one-shot SetNX.
type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	keys  []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: map[string]*sync.Mutex{}}
}

func (f *fakeLocker) WithLock(ctx context.Context, key string, opts lock.Options, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	m, ok := f.locks[key]
	if !ok {
		m = &sync.Mutex{}
		f.locks[key] = m
	}
	f.keys = append(f.keys, key)
	f.mu.Unlock()

	if opts.Strategy == lock.SingleAttempt {
		if !m.TryLock() {
			return lock.ErrLockHeld
		}
	} else {
		m.Lock()
	}
	defer m.Unlock()

	return fn(ctx)
}

// capturingProducer records published events by topic.
type capturingProducer struct {
	mu     sync.Mutex
	topics []string
}

func newCapturingProducer() *capturingProducer {
	return &capturingProducer{}
}

func (p *capturingProducer) record(topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *capturingProducer) published(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func (p *capturingProducer) PublishQueueJoined(context.Context, kafka.QueueJoinedEvent) error {
	return p.record(kafka.TopicQueueJoined)
}

func (p *capturingProducer) PublishQueuePromoted(context.Context, kafka.QueuePromotedEvent) error {
	return p.record(kafka.TopicQueuePromoted)
}

func (p *capturingProducer) PublishQueueReleased(context.Context, kafka.QueueReleasedEvent) error {
	return p.record(kafka.TopicQueueReleased)
}

func (p *capturingProducer) PublishSeatStatusChanged(context.Context, kafka.SeatStatusChangedEvent) error {
	return p.record(kafka.TopicSeatStatusChanged)
}

func (p *capturingProducer) PublishReservationCreated(context.Context, kafka.ReservationEvent) error {
	return p.record(kafka.TopicReservationCreated)
}

func (p *capturingProducer) PublishReservationConfirmed(context.Context, kafka.ReservationEvent) error {
	return p.record(kafka.TopicReservationConfirmed)
}

func (p *capturingProducer) PublishReservationCancelled(context.Context, kafka.ReservationEvent) error {
	return p.record(kafka.TopicReservationCancelled)
}

func (p *capturingProducer) PublishPaymentCompleted(context.Context, kafka.PaymentEvent) error {
	return p.record(kafka.TopicPaymentCompleted)
}

func (p *capturingProducer) PublishPaymentFailed(context.Context, kafka.PaymentEvent) error {
	return p.record(kafka.TopicPaymentFailed)
}

func (p *capturingProducer) Close() error { return nil }

var _ producer.Producer = (*capturingProducer)(nil)
