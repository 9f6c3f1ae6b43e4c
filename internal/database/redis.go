package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/seaclub/backend/internal/config"
	"github.com/sirupsen/logrus"
)

// InitRedis returns a connected client, or nil when Redis is unreachable so
// the service can run without the reconciliation cache.
func InitRedis(ctx context.Context, cfg config.RedisConfig, log logrus.FieldLogger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis connection failed, continuing without redis")
		rdb.Close()
		return nil
	}

	log.WithField("addr", cfg.Addr()).Info("redis connection established")
	return rdb
}
