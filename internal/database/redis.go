package database

import (
	"context"
	"net"
	"time"

	"github.com/facesheet360/carecoins/internal/config"
	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/go-redis/redis/v8"
)

// OpenRedis returns a connected client, or nil when redis is unreachable.
// Callers treat a nil client as "no cache, no queue, no revocation list".
func OpenRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	log := logger.Component("redis")

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		rdb.Close()
		return nil
	}

	log.Info().Str("addr", rdb.Options().Addr).Msg("redis connection established")
	return rdb
}
