package redis

import (
	"github.com/redis/go-redis/v9"

	"github.com/vogiaan1904/ticketbottle-reservation/config"
)

// Nil is re-exported so callers can detect missing keys without
// importing the driver package directly.
const Nil = redis.Nil

func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	return client, nil
}
