package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vogiaan1904/ticketbottle-reservation/config"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka/producer"
	appErrors "github.com/vogiaan1904/ticketbottle-reservation/internal/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	redisrepo "github.com/vogiaan1904/ticketbottle-reservation/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/lock"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
	pkgRedis "github.com/vogiaan1904/ticketbottle-reservation/pkg/redis"
)

// AdmissionService runs the waiting queue in front of the reservation
// flow. Users join a FIFO line, get promoted into a bounded active pool
// as capacity frees up, and carry a signed entry credential while
// active. Every write path that needs admission calls ValidateActive.
type AdmissionService interface {
	// Issue puts the user in line. Issuing again while a live token
	// exists returns the existing token instead of a new place;
	// concurrent issues for one user serialize on a per-user lock so
	// only a single live token can ever result.
	Issue(ctx context.Context, userID string) (*TokenStatusOutput, error)
	Status(ctx context.Context, tokenID string) (*TokenStatusOutput, error)
	// ValidateActive checks that the token exists, is active, has not
	// outlived its residency deadline, and that the presented entry
	// credential was minted for it.
	ValidateActive(ctx context.Context, tokenID, entryToken string) (*models.WaitingToken, error)
	// Release removes the token entirely, freeing the user's admission
	// slot. Releasing an unknown token is a no-op.
	Release(ctx context.Context, tokenID, reason string) error
	// PromoteUpTo moves up to max waiting tokens into the active pool,
	// bounded by free capacity; max <= 0 means fill all free capacity.
	// A full pool returns ErrActivePoolFull.
	PromoteUpTo(ctx context.Context, max int) ([]models.WaitingToken, error)
	// ExpireActive releases every active token past its deadline and
	// returns how many were reclaimed.
	ExpireActive(ctx context.Context) (int, error)
	QueueInfo(ctx context.Context) (*QueueInfoOutput, error)
}

type implAdmissionService struct {
	l        logger.Logger
	repo     redisrepo.TokenRepository
	locker   lock.Locker
	producer producer.Producer
	queueCfg config.QueueConfig
	jwtCfg   config.JWTConfig
}

func NewAdmissionService(
	l logger.Logger,
	repo redisrepo.TokenRepository,
	locker lock.Locker,
	producer producer.Producer,
	queueCfg config.QueueConfig,
	jwtCfg config.JWTConfig,
) AdmissionService {
	return &implAdmissionService{
		l:        l,
		repo:     repo,
		locker:   locker,
		producer: producer,
		queueCfg: queueCfg,
		jwtCfg:   jwtCfg,
	}
}

func (s *implAdmissionService) Issue(ctx context.Context, userID string) (*TokenStatusOutput, error) {
	var out *TokenStatusOutput

	// The duplicate check and the create are separate Redis round trips;
	// without the lock two instances can both pass the check and leave
	// two live tokens for one user.
	err := s.locker.WithLock(ctx, "user:"+userID, lock.Options{}, func(ctx context.Context) error {
		var err error
		out, err = s.issue(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *implAdmissionService) issue(ctx context.Context, userID string) (*TokenStatusOutput, error) {
	existing, err := s.repo.FindByUser(ctx, userID)
	if err != nil && err != pkgRedis.Nil {
		s.l.Errorf(ctx, "service.implAdmissionService.issue: %v", err)
		return nil, err
	}
	if existing != nil {
		if existing.IsLive() {
			return s.statusOf(ctx, existing)
		}
		// Dead token still indexed; clear it before re-issuing.
		if err := s.repo.Delete(ctx, existing); err != nil {
			return nil, err
		}
	}

	seq, err := s.repo.NextSequence(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t := &models.WaitingToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    models.TokenStatusWaiting,
		Sequence:  seq,
		IssuedAt:  now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	out, err := s.statusOf(ctx, t)
	if err != nil {
		return nil, err
	}

	// Events are advisory; the producer logs its own failures.
	_ = s.producer.PublishQueueJoined(ctx, kafka.QueueJoinedEvent{
		TokenID:       t.ID,
		UserID:        t.UserID,
		Position:      out.Position,
		EstimatedWait: out.EstimatedWaitSec,
		JoinedAt:      t.IssuedAt,
	})

	return out, nil
}

func (s *implAdmissionService) Status(ctx context.Context, tokenID string) (*TokenStatusOutput, error) {
	t, err := s.get(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	return s.statusOf(ctx, t)
}

func (s *implAdmissionService) ValidateActive(ctx context.Context, tokenID, entryToken string) (*models.WaitingToken, error) {
	t, err := s.get(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if !t.IsActive() {
		return nil, appErrors.ErrTokenNotActive
	}
	if t.ActiveExpired(time.Now()) {
		return nil, appErrors.ErrTokenExpired
	}
	if err := s.verifyEntryToken(entryToken, t); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *implAdmissionService) Release(ctx context.Context, tokenID, reason string) error {
	t, err := s.repo.Get(ctx, tokenID)
	if err != nil {
		if err == pkgRedis.Nil {
			// The blob carries a TTL, the queue entries do not. A lapsed
			// blob must still drop out of both ZSETs or the id sits in
			// the active set forever, eating a slot.
			if err := s.repo.RemoveWaiting(ctx, tokenID); err != nil {
				return err
			}
			return s.repo.RemoveActive(ctx, tokenID)
		}
		return err
	}

	if err := s.repo.Delete(ctx, t); err != nil {
		return err
	}

	_ = s.producer.PublishQueueReleased(ctx, kafka.QueueReleasedEvent{
		TokenID: t.ID,
		UserID:  t.UserID,
		Reason:  reason,
	})

	return nil
}

func (s *implAdmissionService) PromoteUpTo(ctx context.Context, max int) ([]models.WaitingToken, error) {
	active, err := s.repo.ActiveCount(ctx)
	if err != nil {
		return nil, err
	}

	capacity := int64(s.queueCfg.MaxActive) - active
	if capacity <= 0 {
		return nil, appErrors.ErrActivePoolFull
	}
	if max > 0 && int64(max) < capacity {
		capacity = int64(max)
	}

	ids, err := s.repo.PopWaiting(ctx, int(capacity))
	if err != nil {
		return nil, err
	}

	promoted := make([]models.WaitingToken, 0, len(ids))
	for _, id := range ids {
		t, err := s.repo.Get(ctx, id)
		if err != nil {
			// Token blob expired while waiting; its zset entry is gone
			// already via PopWaiting.
			s.l.Warnf(ctx, "service.implAdmissionService.PromoteUpTo: token %s: %v", id, err)
			continue
		}

		now := time.Now()
		deadline := now.Add(s.queueCfg.ActiveTTL)

		entry, err := s.signEntryToken(t, deadline)
		if err != nil {
			s.l.Errorf(ctx, "service.implAdmissionService.PromoteUpTo: sign %s: %v", id, err)
			continue
		}

		t.Status = models.TokenStatusActive
		t.EntryToken = entry
		t.ActivatedAt = &now
		t.ActiveDeadline = &deadline

		if err := s.repo.Update(ctx, t); err != nil {
			continue
		}
		if err := s.repo.AddActive(ctx, t.ID, deadline); err != nil {
			continue
		}

		_ = s.producer.PublishQueuePromoted(ctx, kafka.QueuePromotedEvent{
			TokenID:        t.ID,
			UserID:         t.UserID,
			ActivatedAt:    now,
			ActiveDeadline: deadline,
		})

		promoted = append(promoted, *t)
	}

	return promoted, nil
}

func (s *implAdmissionService) ExpireActive(ctx context.Context) (int, error) {
	ids, err := s.repo.ExpiredActive(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		if err := s.Release(ctx, id, "ttl_expired"); err != nil {
			s.l.Warnf(ctx, "service.implAdmissionService.ExpireActive: token %s: %v", id, err)
			continue
		}
		count++
	}

	return count, nil
}

func (s *implAdmissionService) QueueInfo(ctx context.Context) (*QueueInfoOutput, error) {
	waiting, err := s.repo.WaitingCount(ctx)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.ActiveCount(ctx)
	if err != nil {
		return nil, err
	}

	return &QueueInfoOutput{
		WaitingCount: waiting,
		ActiveCount:  active,
		MaxActive:    s.queueCfg.MaxActive,
	}, nil
}

func (s *implAdmissionService) get(ctx context.Context, tokenID string) (*models.WaitingToken, error) {
	t, err := s.repo.Get(ctx, tokenID)
	if err != nil {
		if err == pkgRedis.Nil {
			return nil, appErrors.ErrTokenNotFound
		}
		return nil, err
	}

	return t, nil
}

// statusOf derives the user-facing view: waiting tokens get a 1-based
// position (the head of the line sees position 1) and a wait estimate,
// active tokens get position 0.
func (s *implAdmissionService) statusOf(ctx context.Context, t *models.WaitingToken) (*TokenStatusOutput, error) {
	out := &TokenStatusOutput{Token: t}

	if t.IsWaiting() {
		rank, err := s.repo.WaitingRank(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if rank >= 0 {
			out.Position = rank + 1
			out.EstimatedWaitSec = out.Position * int64(s.queueCfg.SecondsPerSlot)
		}
	}

	return out, nil
}

type entryClaims struct {
	TokenID string `json:"token_id"`
	jwt.RegisteredClaims
}

func (s *implAdmissionService) signEntryToken(t *models.WaitingToken, deadline time.Time) (string, error) {
	now := time.Now()

	// The credential never outlives the active slot it grants.
	exp := now.Add(s.jwtCfg.Expiry)
	if deadline.Before(exp) {
		exp = deadline
	}

	claims := entryClaims{
		TokenID: t.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   t.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
}

func (s *implAdmissionService) verifyEntryToken(raw string, t *models.WaitingToken) error {
	if raw == "" {
		return appErrors.ErrInvalidToken
	}

	var claims entryClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.ErrInvalidToken
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return appErrors.ErrInvalidToken
	}

	if claims.TokenID != t.ID || claims.Subject != t.UserID {
		return appErrors.ErrInvalidToken
	}

	return nil
}
