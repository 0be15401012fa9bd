package domain

import (
	"context"
	"net/http"

	reconciledomain "github.com/tokenworks/tokenledger/internal/reconcile/domain"
)

// AdapterConfig carries the per-provider credentials an adapter needs.
type AdapterConfig struct {
	WebhookSecret string
}

// PaymentAdapter verifies a raw provider delivery and normalizes it into the
// canonical payment event. Verify must run before Parse; Parse never trusts
// unverified input beyond shape checks.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*reconciledomain.PaymentEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}
