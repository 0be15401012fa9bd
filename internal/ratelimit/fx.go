package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/tokenworks/tokenledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewWebhookLimiterFromConfig(cfg config.Config, client *redis.Client, log *zap.Logger) *WebhookLimiter {
	return NewWebhookLimiter(cfg, NewTokenBucket(client), log)
}

var Module = fx.Module("ratelimit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewWebhookLimiterFromConfig),
	fx.Provide(NewLocker),
)
