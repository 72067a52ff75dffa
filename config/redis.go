package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// ConnectRedis initializes a singleton Redis client when REDIS_ENABLED is set.
// Returns a nil client without error when Redis is disabled or in test env.
func ConnectRedis(cfg *Config) (*redis.Client, error) {
	var err error
	redisOnce.Do(func() {
		if cfg == nil || !cfg.RedisEnabled || cfg.IsTest() {
			return
		}

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err = rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			err = fmt.Errorf("redis ping failed: %w", err)
			return
		}

		redisClient = rdb
		util.Logger().Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	})
	return redisClient, err
}

// GetRedisClient returns the initialized Redis client (may be nil if ConnectRedis failed or not called).
func GetRedisClient() *redis.Client {
	return redisClient
}
