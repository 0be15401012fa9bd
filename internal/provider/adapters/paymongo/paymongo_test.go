package paymongo_test

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

	"github.com/tokenworks/tokenledger/internal/provider/adapters/paymongo"
	providerdomain "github.com/tokenworks/tokenledger/internal/provider/domain"
)

func newAdapter(t *testing.T, secret string) providerdomain.PaymentAdapter {
	t.Helper()

	adapter, err := paymongo.NewFactory().NewAdapter(providerdomain.AdapterConfig{WebhookSecret: secret})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func buildSignatureHeader(secret string, payload []byte, timestamp int64, mode string) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,%s=%s", timestamp, mode, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyAcceptsTestAndLiveDigests(t *testing.T) {
	ctx := context.Background()
	secret := "whsk_test"
	adapter := newAdapter(t, secret)
	payload := []byte(`{"data":{"id":"evt_1"}}`)
	now := time.Now().Unix()

	for _, mode := range []string{"te", "li"} {
		header := http.Header{}
		header.Set("Paymongo-Signature", buildSignatureHeader(secret, payload, now, mode))
		if err := adapter.Verify(ctx, payload, header); err != nil {
			t.Fatalf("mode %s: verify: %v", mode, err)
		}
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsk_test")
	payload := []byte(`{"data":{"id":"evt_1"}}`)

	header := http.Header{}
	header.Set("Paymongo-Signature", buildSignatureHeader("wrong_secret", payload, time.Now().Unix(), "li"))
	if err := adapter.Verify(ctx, payload, header); !errors.Is(err, providerdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	if err := adapter.Verify(ctx, payload, http.Header{}); !errors.Is(err, providerdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature on missing header, got %v", err)
	}
}

func TestParseNestedResourceShape(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsk_test")

	payload := []byte(`{
		"data": {
			"id": "evt_nested",
			"attributes": {
				"type": "checkout_session.payment.paid",
				"created_at": 1767225600,
				"data": {
					"id": "cs_1",
					"attributes": {
						"paid_at": 1767225700,
						"metadata": {
							"account_id": "7346759965120397313",
							"email": "buyer@example.com",
							"token_credits": "1000000"
						}
					}
				}
			}
		}
	}`)

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.EventID != "evt_nested" {
		t.Fatalf("expected event id evt_nested, got %s", event.EventID)
	}
	if event.AccountID != "7346759965120397313" {
		t.Fatalf("expected account id, got %q", event.AccountID)
	}
	if event.Email != "buyer@example.com" {
		t.Fatalf("expected email, got %q", event.Email)
	}
	if event.Amount != 1_000_000 {
		t.Fatalf("expected amount 1000000, got %d", event.Amount)
	}
	if event.ReceivedAt.Unix() != 1767225700 {
		t.Fatalf("expected paid_at timestamp, got %v", event.ReceivedAt)
	}
}

func TestParseFlatResourceShape(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsk_test")

	payload := []byte(`{
		"data": {
			"id": "evt_flat",
			"attributes": {
				"type": "payment.paid",
				"created_at": 1767225600,
				"data": {
					"paid_at": 1767225700,
					"metadata": {
						"email": "flat@example.com",
						"token_credits": 500000
					}
				}
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
	if event.Email != "flat@example.com" {
		t.Fatalf("expected email, got %q", event.Email)
	}
	if event.Amount != 500_000 {
		t.Fatalf("expected amount 500000, got %d", event.Amount)
	}
}

func TestParseDropsFractionalCredits(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsk_test")

	payload := []byte(`{
		"data": {
			"id": "evt_fractional",
			"attributes": {
				"type": "payment.paid",
				"created_at": 1767225600,
				"data": {
					"metadata": {
						"email": "frac@example.com",
						"token_credits": 2.5
					}
				}
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
	adapter := newAdapter(t, "whsk_test")

	payload := []byte(`{"data":{"id":"evt_ignored","attributes":{"type":"payment.failed","data":{}}}}`)
	if _, err := adapter.Parse(ctx, payload); !errors.Is(err, providerdomain.ErrEventIgnored) {
		t.Fatalf("expected event ignored, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	adapter := newAdapter(t, "whsk_test")

	if _, err := adapter.Parse(ctx, []byte(`not json`)); !errors.Is(err, providerdomain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
	if _, err := adapter.Parse(ctx, []byte(`{"data":{}}`)); !errors.Is(err, providerdomain.ErrInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
}
