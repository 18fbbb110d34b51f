package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/ticketbottle-reservation/internal/models"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
)

// TokenRepository stores admission tokens and the two queue structures
// built over them: the waiting ZSET ordered by issuance sequence and
// the active ZSET ordered by residency deadline. All operations are
// single Redis commands, pipelines, or Lua scripts so concurrent
// service instances and sweeper runs stay consistent.
type TokenRepository interface {
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, t *models.WaitingToken) error
	Get(ctx context.Context, id string) (*models.WaitingToken, error)
	Update(ctx context.Context, t *models.WaitingToken) error
	FindByUser(ctx context.Context, userID string) (*models.WaitingToken, error)
	Delete(ctx context.Context, t *models.WaitingToken) error

	WaitingRank(ctx context.Context, id string) (int64, error)
	WaitingCount(ctx context.Context) (int64, error)
	RemoveWaiting(ctx context.Context, id string) error
	PopWaiting(ctx context.Context, count int) ([]string, error)

	AddActive(ctx context.Context, id string, deadline time.Time) error
	RemoveActive(ctx context.Context, id string) error
	ActiveCount(ctx context.Context) (int64, error)
	ExpiredActive(ctx context.Context, now time.Time) ([]string, error)
}

type redisTokenRepository struct {
	cli *redis.Client
	ttl time.Duration
	l   logger.Logger
}

func NewRedisTokenRepository(cli *redis.Client, ttl time.Duration, l logger.Logger) TokenRepository {
	return &redisTokenRepository{
		cli: cli,
		ttl: ttl,
		l:   l,
	}
}

func (r *redisTokenRepository) NextSequence(ctx context.Context) (int64, error) {
	seq, err := r.cli.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.NextSequence: %v", err)
		return 0, err
	}

	return seq, nil
}

func (r *redisTokenRepository) Create(ctx context.Context, t *models.WaitingToken) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	// Token blob, user index and waiting entry must appear together.
	pipe := r.cli.Pipeline()
	pipe.Set(ctx, r.tokenKey(t.ID), data, r.ttl)
	pipe.Set(ctx, r.userTokenKey(t.UserID), t.ID, r.ttl)
	pipe.ZAdd(ctx, r.waitingKey(), redis.Z{
		Score:  float64(t.Sequence),
		Member: t.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.Create: %v", err)
		return err
	}

	return nil
}

func (r *redisTokenRepository) Get(ctx context.Context, id string) (*models.WaitingToken, error) {
	data, err := r.cli.Get(ctx, r.tokenKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.l.Errorf(ctx, "redisTokenRepository.Get: %v", err)
		}
		return nil, err
	}

	var t models.WaitingToken
	if err := json.Unmarshal(data, &t); err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.Get: %v", err)
		return nil, err
	}

	return &t, nil
}

func (r *redisTokenRepository) Update(ctx context.Context, t *models.WaitingToken) error {
	t.UpdatedAt = time.Now()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	key := r.tokenKey(t.ID)

	ttl, err := r.cli.TTL(ctx, key).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.Update: %v", err)
		return err
	}
	if ttl <= 0 {
		ttl = r.ttl
	}

	if err := r.cli.Set(ctx, key, data, ttl).Err(); err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.Update: %v", err)
		return err
	}

	return nil
}

func (r *redisTokenRepository) FindByUser(ctx context.Context, userID string) (*models.WaitingToken, error) {
	id, err := r.cli.Get(ctx, r.userTokenKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			r.l.Errorf(ctx, "redisTokenRepository.FindByUser: %v", err)
		}
		return nil, err
	}

	return r.Get(ctx, id)
}

func (r *redisTokenRepository) Delete(ctx context.Context, t *models.WaitingToken) error {
	pipe := r.cli.Pipeline()
	pipe.Del(ctx, r.tokenKey(t.ID))
	pipe.Del(ctx, r.userTokenKey(t.UserID))
	pipe.ZRem(ctx, r.waitingKey(), t.ID)
	pipe.ZRem(ctx, r.activeKey(), t.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.Delete: %v", err)
		return err
	}

	return nil
}

func (r *redisTokenRepository) WaitingRank(ctx context.Context, id string) (int64, error) {
	rank, err := r.cli.ZRank(ctx, r.waitingKey(), id).Result()
	if err != nil {
		if err == redis.Nil {
			return -1, nil // not waiting
		}

		r.l.Errorf(ctx, "redisTokenRepository.WaitingRank: %v", err)
		return 0, err
	}

	return rank, nil
}

func (r *redisTokenRepository) WaitingCount(ctx context.Context) (int64, error) {
	count, err := r.cli.ZCard(ctx, r.waitingKey()).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.WaitingCount: %v", err)
		return 0, err
	}

	return count, nil
}

func (r *redisTokenRepository) RemoveWaiting(ctx context.Context, id string) error {
	if err := r.cli.ZRem(ctx, r.waitingKey(), id).Err(); err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.RemoveWaiting: %v", err)
		return err
	}

	return nil
}

func (r *redisTokenRepository) PopWaiting(ctx context.Context, count int) ([]string, error) {
	// Atomic pop: concurrent promoters never admit the same token twice.
	script := redis.NewScript(`
		local key = KEYS[1]
		local count = tonumber(ARGV[1])

		local members = redis.call('ZRANGE', key, 0, count - 1)
		if #members > 0 then
			redis.call('ZREM', key, unpack(members))
		end

		return members
	`)

	res, err := script.Run(ctx, r.cli, []string{r.waitingKey()}, count).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.PopWaiting: %v", err)
		return nil, err
	}

	ids := make([]string, 0)
	if resSlice, ok := res.([]interface{}); ok {
		for _, v := range resSlice {
			if id, ok := v.(string); ok {
				ids = append(ids, id)
			}
		}
	}

	return ids, nil
}

func (r *redisTokenRepository) AddActive(ctx context.Context, id string, deadline time.Time) error {
	if err := r.cli.ZAdd(ctx, r.activeKey(), redis.Z{
		Score:  float64(deadline.Unix()),
		Member: id,
	}).Err(); err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.AddActive: %v", err)
		return err
	}

	return nil
}

func (r *redisTokenRepository) RemoveActive(ctx context.Context, id string) error {
	if err := r.cli.ZRem(ctx, r.activeKey(), id).Err(); err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.RemoveActive: %v", err)
		return err
	}

	return nil
}

func (r *redisTokenRepository) ActiveCount(ctx context.Context) (int64, error) {
	count, err := r.cli.ZCard(ctx, r.activeKey()).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.ActiveCount: %v", err)
		return 0, err
	}

	return count, nil
}

func (r *redisTokenRepository) ExpiredActive(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := r.cli.ZRangeByScore(ctx, r.activeKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisTokenRepository.ExpiredActive: %v", err)
		return nil, err
	}

	return ids, nil
}

func (r *redisTokenRepository) tokenKey(id string) string {
	return fmt.Sprintf("resv:token:%s", id)
}

func (r *redisTokenRepository) userTokenKey(userID string) string {
	return fmt.Sprintf("resv:user_token:%s", userID)
}

func (r *redisTokenRepository) waitingKey() string {
	return "resv:queue:waiting"
}

func (r *redisTokenRepository) activeKey() string {
	return "resv:queue:active"
}

func (r *redisTokenRepository) seqKey() string {
	return "resv:queue:seq"
}
