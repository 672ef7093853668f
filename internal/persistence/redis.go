package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/config"
)

// ErrRedisDisabled is returned when no client is configured.
var ErrRedisDisabled = errors.New("redis not configured")

// Redis holds the shared client and namespaces every key under a prefix.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis creates the client. An unreachable server is logged, not fatal:
// display IDs then fall back to random suffixes.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("redis connected", zap.String("addr", cfg.Addr))
	}
	return &Redis{Client: client, prefix: cfg.KeyPrefix}
}

func (r *Redis) key(parts ...string) string {
	return r.prefix + strings.Join(parts, ":")
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping is used by the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisDisabled
	}
	return r.Client.Ping(ctx).Err()
}

// NextSequence increments the named counter and returns its new value.
func (r *Redis) NextSequence(ctx context.Context, name string) (int64, error) {
	if r == nil || r.Client == nil {
		return 0, ErrRedisDisabled
	}
	return r.Client.Incr(ctx, r.key("seq", name)).Result()
}
