package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

// Strategy selects how an acquisition behaves when the key is held.
type Strategy int

const (
	// Spin retries acquisition at a fixed interval until the wait
	// budget elapses.
	Spin Strategy = iota
	// SingleAttempt tries once and fails immediately if held.
	SingleAttempt
)

var (
	ErrLockTimeout = errors.New("lock wait timeout exceeded")
	ErrLockHeld    = errors.New("lock already held")
)

type Options struct {
	Lease         time.Duration
	Wait          time.Duration
	RetryInterval time.Duration
	Strategy      Strategy
}

// Locker serializes execution of fn across all process instances for a
// given key. The lease auto-expires, so fn must be bounded in duration
// and safe against the rare case of the lease lapsing mid-execution.
type Locker interface {
	WithLock(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error
}

// rediser is the slice of the go-redis client the manager needs; kept
// narrow so tests can fake it.
type rediser interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

const keyPrefix = "resv:lock:"

// releaseScript deletes the lease only when the caller still holds it,
// so an expired-and-reacquired lease is never released by the old holder.
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

type Manager struct {
	cli      rediser
	defaults Options
	l        logger.Logger
}

func NewManager(cli rediser, defaults Options, l logger.Logger) *Manager {
	if defaults.Lease <= 0 {
		defaults.Lease = 3 * time.Second
	}
	if defaults.Wait <= 0 {
		defaults.Wait = 3 * time.Second
	}
	if defaults.RetryInterval <= 0 {
		defaults.RetryInterval = 100 * time.Millisecond
	}

	return &Manager{
		cli:      cli,
		defaults: defaults,
		l:        l,
	}
}

func (m *Manager) WithLock(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	if opts.Lease <= 0 {
		opts.Lease = m.defaults.Lease
	}
	if opts.Wait <= 0 {
		opts.Wait = m.defaults.Wait
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = m.defaults.RetryInterval
	}

	lockKey := keyPrefix + key
	holder := uuid.New().String()

	if err := m.acquire(ctx, lockKey, holder, opts); err != nil {
		return err
	}
	defer m.release(ctx, lockKey, holder)

	return fn(ctx)
}

func (m *Manager) acquire(ctx context.Context, lockKey, holder string, opts Options) error {
	ok, err := m.cli.SetNX(ctx, lockKey, holder, opts.Lease).Result()
	if err != nil {
		m.l.Errorf(ctx, "lock.Manager.acquire: %v", err)
		return err
	}
	if ok {
		return nil
	}

	if opts.Strategy == SingleAttempt {
		return ErrLockHeld
	}

	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return ErrLockTimeout
			}

			ok, err := m.cli.SetNX(ctx, lockKey, holder, opts.Lease).Result()
			if err != nil {
				m.l.Errorf(ctx, "lock.Manager.acquire: %v", err)
				return err
			}
			if ok {
				return nil
			}
		}
	}
}

func (m *Manager) release(ctx context.Context, lockKey, holder string) {
	if _, err := m.cli.Eval(ctx, releaseScript, []string{lockKey}, holder).Result(); err != nil {
		// The lease will expire on its own; losing the delete only
		// delays the next acquirer.
		m.l.Warnf(ctx, "lock.Manager.release: %v", err)
	}
}
