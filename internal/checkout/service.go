package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/tokenworks/tokenledger/internal/config"
	obsmetrics "github.com/tokenworks/tokenledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrUnknownPack           = errors.New("unknown_pack")
	ErrProviderNotSupported  = errors.New("provider_not_supported")
	ErrProviderNotConfigured = errors.New("provider_not_configured")
	ErrMissingIdentifier     = errors.New("missing_identifier")
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type CreateSessionRequest struct {
	Provider  string `json:"provider"`
	PackID    string `json:"pack_id"`
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// Session is the provider-hosted checkout page a buyer is redirected to. The
// pack metadata embedded at creation is what the webhook reconciles against
// later.
type Session struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Provider string `json:"provider"`
	Pack     Pack   `json:"pack"`
}

type Service struct {
	log       *zap.Logger
	checkout  config.CheckoutConfig
	providers config.ProviderConfig
	packs     []Pack
	paymongo  *payMongoClient
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) (*Service, error) {
	packs, err := ParsePacks(p.Cfg.Checkout.Packs)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		log:       p.Log.Named("checkout.service"),
		checkout:  p.Cfg.Checkout,
		providers: p.Cfg.Providers,
		packs:     packs,
		metrics:   p.Metrics,
	}
	if p.Cfg.Providers.PayMongoSecretKey != "" {
		svc.paymongo = newPayMongoClient(p.Cfg.Providers.PayMongoSecretKey, "")
	}
	if p.Cfg.Providers.StripeSecretKey != "" {
		stripe.Key = p.Cfg.Providers.StripeSecretKey
	}
	return svc, nil
}

func (s *Service) Packs() []Pack {
	return s.packs
}

func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = "paymongo"
	}

	pack := FindPack(s.packs, req.PackID)
	if pack == nil {
		return nil, ErrUnknownPack
	}

	accountID := strings.TrimSpace(req.AccountID)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if accountID == "" && email == "" {
		return nil, ErrMissingIdentifier
	}

	metadata := map[string]string{
		"token_credits": strconv.FormatInt(pack.TokenCredits, 10),
	}
	if accountID != "" {
		metadata["account_id"] = accountID
	}
	if email != "" {
		metadata["email"] = email
	}

	var (
		result *Session
		err    error
	)
	switch provider {
	case "paymongo":
		result, err = s.createPayMongoSession(ctx, pack, metadata)
	case "stripe":
		result, err = s.createStripeSession(ctx, pack, email, metadata)
	default:
		return nil, ErrProviderNotSupported
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordCheckoutSession(ctx, provider)
	}
	s.log.Info("checkout session created",
		zap.String("provider", provider),
		zap.String("pack", pack.ID),
		zap.String("session_id", result.ID),
	)
	return result, nil
}

func (s *Service) createPayMongoSession(ctx context.Context, pack *Pack, metadata map[string]string) (*Session, error) {
	if s.paymongo == nil {
		return nil, ErrProviderNotConfigured
	}

	resp, err := s.paymongo.CreateCheckoutSession(ctx, payMongoCheckoutAttributes{
		Description:      fmt.Sprintf("%s token pack", pack.ID),
		ShowLineItems:    true,
		SendEmailReceipt: false,
		LineItems: []payMongoLineItem{{
			Currency: s.checkout.Currency,
			Amount:   pack.AmountMinor,
			Name:     fmt.Sprintf("%s token pack (%d tokens)", pack.ID, pack.TokenCredits),
			Quantity: 1,
		}},
		PaymentMethodTypes: []string{"card", "gcash", "paymaya"},
		SuccessURL:         s.checkout.SuccessURL,
		CancelURL:          s.checkout.CancelURL,
		Metadata:           metadata,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:       resp.Data.ID,
		URL:      resp.Data.Attributes.CheckoutURL,
		Provider: "paymongo",
		Pack:     *pack,
	}, nil
}

func (s *Service) createStripeSession(ctx context.Context, pack *Pack, email string, metadata map[string]string) (*Session, error) {
	if s.providers.StripeSecretKey == "" {
		return nil, ErrProviderNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.checkout.SuccessURL),
		CancelURL:  stripe.String(s.checkout.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(s.checkout.Currency)),
				UnitAmount: stripe.Int64(pack.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("%s token pack (%d tokens)", pack.ID, pack.TokenCredits)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	created, err := session.New(params)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:       created.ID,
		URL:      created.URL,
		Provider: "stripe",
		Pack:     *pack,
	}, nil
}

var Module = fx.Module("checkout.service",
	fx.Provide(NewService),
)
