package ratelimit

import (
	"context"
	"fmt"

	"github.com/tokenworks/tokenledger/internal/config"
	"go.uber.org/zap"
)

// WebhookLimiter throttles webhook ingest per provider. A nil limiter (rate
// limiting disabled or redis not configured) allows everything.
type WebhookLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewWebhookLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *WebhookLimiter {
	if !cfg.RateLimit.Enabled || bucket == nil {
		return nil
	}
	return &WebhookLimiter{
		bucket: bucket,
		rate:   cfg.RateLimit.WebhookRate,
		burst:  cfg.RateLimit.WebhookBurst,
		log:    log.Named("ratelimit.webhook"),
	}
}

// Allow fails open: a redis error must not drop a paid webhook delivery.
func (w *WebhookLimiter) Allow(ctx context.Context, provider string) *RateLimitResult {
	if w == nil {
		return &RateLimitResult{Allowed: true}
	}

	key := fmt.Sprintf("ratelimit:webhook:%s", provider)
	result, err := w.bucket.Allow(ctx, key, w.rate, w.burst)
	if err != nil {
		w.log.Warn("rate limit check failed, allowing delivery",
			zap.String("provider", provider),
			zap.Error(err),
		)
		return &RateLimitResult{Allowed: true}
	}
	return result
}
