package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/lock"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

const expiredHoldBatchSize = 100

// Sweeper is the background reconciler. Each cycle it cancels lapsed
// seat holds, reclaims active tokens past their deadline, and refills
// the active pool from the waiting line. A short single-attempt lock
// keeps concurrent instances from sweeping the same tick; every pass is
// idempotent, so a missed or doubled cycle is harmless.
type Sweeper struct {
	l            logger.Logger
	admission    AdmissionService
	reservations ReservationService
	locker       lock.Locker
	interval     time.Duration

	mu         sync.RWMutex
	running    bool
	lastRun    time.Time
	errorCount int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewSweeper(
	l logger.Logger,
	admission AdmissionService,
	reservations ReservationService,
	locker lock.Locker,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		l:            l,
		admission:    admission,
		reservations: reservations,
		locker:       locker,
		interval:     interval,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx)

	s.l.Infof(ctx, "sweeper started, interval %s", s.interval)
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sweeper) Status() SweeperStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SweeperStatus{
		Running:    s.running,
		LastRun:    s.lastRun,
		ErrorCount: s.errorCount,
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	opts := lock.Options{
		Strategy: lock.SingleAttempt,
		Lease:    s.interval,
	}

	err := s.locker.WithLock(ctx, "sweeper:cycle", opts, s.Cycle)

	s.mu.Lock()
	s.lastRun = time.Now()
	if err != nil && err != lock.ErrLockHeld {
		s.errorCount++
	}
	s.mu.Unlock()

	if err != nil {
		if err == lock.ErrLockHeld {
			s.l.Debugf(ctx, "sweeper: another instance holds the cycle")
			return
		}
		s.l.Errorf(ctx, "service.Sweeper.sweep: %v", err)
	}
}

// Cycle runs one reconciliation pass. Exported so operators can trigger
// a sweep out of band.
func (s *Sweeper) Cycle(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.reservations.ExpireHolds(ctx, expiredHoldBatchSize)
		if err != nil {
			return err
		}
		if n > 0 {
			s.l.Infof(ctx, "sweeper: expired %d seat holds", n)
		}
		return nil
	})

	// Reclaim before refilling so freed slots hand out in the same tick.
	g.Go(func() error {
		n, err := s.admission.ExpireActive(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			s.l.Infof(ctx, "sweeper: reclaimed %d active tokens", n)
		}

		promoted, err := s.admission.PromoteUpTo(ctx, 0)
		if err != nil {
			if err == appErrors.ErrActivePoolFull {
				return nil
			}
			return err
		}
		if len(promoted) > 0 {
			s.l.Infof(ctx, "sweeper: promoted %d tokens", len(promoted))
		}
		return nil
	})

	return g.Wait()
}
