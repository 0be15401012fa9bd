package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tokenworks/tokenledger/internal/config"
	obsmetrics "github.com/tokenworks/tokenledger/internal/observability/metrics"
	"github.com/tokenworks/tokenledger/internal/provider/adapters"
	providerdomain "github.com/tokenworks/tokenledger/internal/provider/domain"
	"github.com/tokenworks/tokenledger/internal/ratelimit"
	reconciledomain "github.com/tokenworks/tokenledger/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when the per-provider ingest budget is spent.
var ErrRateLimited = errors.New("rate_limited")

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Adapters  *adapters.Registry
	Reconcile reconciledomain.Service
	Limiter   *ratelimit.WebhookLimiter `optional:"true"`
	Locker    *ratelimit.Locker         `optional:"true"`
	Metrics   *obsmetrics.Metrics       `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	cfg       config.Config
	adapters  *adapters.Registry
	reconcile reconciledomain.Service
	limiter   *ratelimit.WebhookLimiter
	locker    *ratelimit.Locker
	lockTTL   time.Duration
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	lockTTL := time.Duration(p.Cfg.RateLimit.LockTTLSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Service{
		log:       p.Log.Named("webhook.service"),
		cfg:       p.Cfg,
		adapters:  p.Adapters,
		reconcile: p.Reconcile,
		limiter:   p.Limiter,
		locker:    p.Locker,
		lockTTL:   lockTTL,
		metrics:   p.Metrics,
	}
}

// IngestWebhook verifies, normalizes and reconciles one provider delivery.
// Deliveries the provider should not retry (ignored event types, bad
// signatures, unknown providers) surface as errors; everything else comes
// back as a reconciliation result.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (reconciledomain.Result, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !s.adapters.ProviderExists(provider) {
		return reconciledomain.Result{}, providerdomain.ErrProviderNotFound
	}

	if limit := s.limiter.Allow(ctx, provider); !limit.Allowed {
		if s.metrics != nil {
			s.metrics.RecordRateLimitDenied(ctx, provider)
		}
		return reconciledomain.Result{}, ErrRateLimited
	}

	adapter, err := s.adapters.NewAdapter(provider, providerdomain.AdapterConfig{
		WebhookSecret: s.webhookSecret(provider),
	})
	if err != nil {
		return reconciledomain.Result{}, err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider))
		s.recordDelivery(ctx, provider, "invalid_signature")
		return reconciledomain.Result{}, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, providerdomain.ErrEventIgnored) {
			s.recordDelivery(ctx, provider, "ignored")
			return reconciledomain.Result{}, err
		}
		s.log.Warn("webhook payload rejected", zap.String("provider", provider), zap.Error(err))
		s.recordDelivery(ctx, provider, "invalid_payload")
		return reconciledomain.Result{}, err
	}

	// Best-effort delivery lease: concurrent redeliveries of the same event
	// get shed here instead of racing in the database. The unique index on
	// (provider, event_id) stays the real gate, so a lost lease is harmless.
	if s.locker != nil {
		key := fmt.Sprintf("webhook:delivery:%s:%s", provider, event.EventID)
		lease, lockErr := s.locker.Acquire(ctx, key, s.lockTTL)
		if lockErr == nil {
			if lease == nil {
				s.log.Debug("delivery already in flight",
					zap.String("provider", provider),
					zap.String("event_id", event.EventID),
				)
				s.recordDelivery(ctx, provider, string(reconciledomain.OutcomeDuplicate))
				return reconciledomain.Result{Code: reconciledomain.OutcomeDuplicate}, nil
			}
			defer func() {
				_ = lease.Release(ctx)
			}()
		}
	}

	result := s.reconcile.Reconcile(ctx, event)
	s.recordDelivery(ctx, provider, string(result.Code))
	return result, nil
}

func (s *Service) webhookSecret(provider string) string {
	switch provider {
	case "paymongo":
		return s.cfg.Providers.PayMongoWebhookSecret
	case "stripe":
		return s.cfg.Providers.StripeWebhookSecret
	}
	return ""
}

func (s *Service) recordDelivery(ctx context.Context, provider, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordWebhookDelivery(ctx, provider, status)
}

var Module = fx.Module("webhook.service",
	fx.Provide(NewService),
)
