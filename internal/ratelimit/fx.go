package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/docflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
)

// NewLimiter returns nil when rate limiting is disabled. A configured Redis
// address selects the shared token bucket, otherwise limits are per process.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Limiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if limitCfg.Rate <= 0 {
		return nil, ErrInvalidRate
	}
	if limitCfg.Burst <= 0 {
		return nil, ErrInvalidBurst
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		log.Info("rate limiting with in-process buckets",
			zap.Float64("rate", limitCfg.Rate),
			zap.Int("burst", limitCfg.Burst),
		)
		return NewLocalLimiter(limitCfg.Rate, limitCfg.Burst), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: limitCfg.RedisPassword,
		DB:       limitCfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("rate limiting with redis token bucket",
		zap.String("addr", addr),
		zap.Float64("rate", limitCfg.Rate),
		zap.Int("burst", limitCfg.Burst),
	)
	return NewTokenBucket(client, limitCfg.Rate, limitCfg.Burst), nil
}
