package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"ping-integrity-service/config"
)

var RedisClient *redis.Client

// InitRedis connects the shared Redis client used for last-known-ping state.
func InitRedis() error {
	cfg := config.Cfg.Redis

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := RedisClient.Ping(context.Background()).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Msg("Connected to Redis")
	return nil
}
