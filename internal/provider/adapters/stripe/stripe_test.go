package stripe_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/tokenworks/tokenledger/internal/provider/adapters/stripe"
	providerdomain "github.com/tokenworks/tokenledger/internal/provider/domain"
)

func newAdapter(t *testing.T, secret string) providerdomain.PaymentAdapter {
	t.Helper()

	adapter, err := stripe.NewFactory().NewAdapter(providerdomain.AdapterConfig{WebhookSecret: secret})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func buildSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyAcceptsV1Digest(t *testing.T) {
	ctx := context.Background()
	secret := "whsec_test"
	adapter := newAdapter(t, secret)
	payload := []byte(`{"id":"evt_1"}`)

	header := http.Header{}
	header.Set("Stripe-Signature", buildSignatureHeader(secret, payload, time.Now().Unix()))
	if err := adapter.Verify(ctx, payload, header); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsec_test")
	payload := []byte(`{"id":"evt_1"}`)

	header := http.Header{}
	header.Set("Stripe-Signature", buildSignatureHeader("wrong_secret", payload, time.Now().Unix()))
	if err := adapter.Verify(ctx, payload, header); !errors.Is(err, providerdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	if err := adapter.Verify(ctx, payload, http.Header{}); !errors.Is(err, providerdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature on missing header, got %v", err)
	}
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsec_test")

	payload := []byte(`{
		"id": "evt_stripe_1",
		"type": "checkout.session.completed",
		"created": 1767225600,
		"data": {
			"object": {
				"id": "cs_1",
				"customer_email": "fallback@example.com",
				"metadata": {
					"account_id": "7346759965120397313",
					"email": "buyer@example.com",
					"token_credits": "5000000"
				}
			}
		}
	}`)

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.EventID != "evt_stripe_1" {
		t.Fatalf("expected event id evt_stripe_1, got %s", event.EventID)
	}
	if event.AccountID != "7346759965120397313" {
		t.Fatalf("expected account id, got %q", event.AccountID)
	}
	if event.Email != "buyer@example.com" {
		t.Fatalf("expected metadata email to win, got %q", event.Email)
	}
	if event.Amount != 5_000_000 {
		t.Fatalf("expected amount 5000000, got %d", event.Amount)
	}
	if event.ReceivedAt.Unix() != 1767225600 {
		t.Fatalf("expected created timestamp, got %v", event.ReceivedAt)
	}
}

func TestParseFallsBackToCustomerEmail(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsec_test")

	payload := []byte(`{
		"id": "evt_stripe_2",
		"type": "checkout.session.async_payment_succeeded",
		"created": 1767225600,
		"data": {
			"object": {
				"id": "cs_2",
				"customer_details": {"email": "details@example.com"},
				"metadata": {"token_credits": 1000000}
			}
		}
	}`)

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.AccountID != "" {
		t.Fatalf("expected empty account id, got %q", event.AccountID)
	}
	if event.Email != "details@example.com" {
		t.Fatalf("expected customer details email, got %q", event.Email)
	}
	if event.Amount != 1_000_000 {
		t.Fatalf("expected amount 1000000, got %d", event.Amount)
	}
}

func TestParseDropsFractionalCredits(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsec_test")

	payload := []byte(`{
		"id": "evt_fractional",
		"type": "checkout.session.completed",
		"created": 1767225600,
		"data": {
			"object": {
				"id": "cs_frac",
				"customer_email": "frac@example.com",
				"metadata": {"token_credits": 2.5}
			}
		}
	}`)

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Amount != 0 {
		t.Fatalf("expected fractional credits to be dropped, got amount %d", event.Amount)
	}
}

func TestParseIgnoresUnhandledEventTypes(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsec_test")

	payload := []byte(`{"id":"evt_ignored","type":"invoice.paid","data":{"object":{}}}`)
	if _, err := adapter.Parse(ctx, payload); !errors.Is(err, providerdomain.ErrEventIgnored) {
		t.Fatalf("expected event ignored, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsec_test")

	if _, err := adapter.Parse(ctx, []byte(`not json`)); !errors.Is(err, providerdomain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
	if _, err := adapter.Parse(ctx, []byte(`{"type":"checkout.session.completed"}`)); !errors.Is(err, providerdomain.ErrInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
}
