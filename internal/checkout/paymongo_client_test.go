package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateCheckoutSession(t *testing.T) {
	var captured payMongoCheckoutRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout_sessions" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			t.Fatalf("expected basic auth header, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"cs_1","attributes":{"checkout_url":"https://checkout.paymongo.com/cs_1"}}}`))
	}))
	defer server.Close()

	client := newPayMongoClient("sk_test", server.URL)
	resp, err := client.CreateCheckoutSession(context.Background(), payMongoCheckoutAttributes{
		Description: "starter token pack",
		LineItems: []payMongoLineItem{{
			Currency: "PHP",
			Amount:   9_900,
			Name:     "starter token pack (1000000 tokens)",
			Quantity: 1,
		}},
		SuccessURL: "https://example.com/success",
		CancelURL:  "https://example.com/cancel",
		Metadata: map[string]string{
			"account_id":    "7346759965120397313",
			"token_credits": "1000000",
		},
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}
	if resp.Data.ID != "cs_1" {
		t.Fatalf("expected session cs_1, got %q", resp.Data.ID)
	}
	if resp.Data.Attributes.CheckoutURL != "https://checkout.paymongo.com/cs_1" {
		t.Fatalf("unexpected checkout url %q", resp.Data.Attributes.CheckoutURL)
	}

	metadata := captured.Data.Attributes.Metadata
	if metadata["token_credits"] != "1000000" {
		t.Fatalf("expected token_credits metadata, got %+v", metadata)
	}
	if metadata["account_id"] != "7346759965120397313" {
		t.Fatalf("expected account_id metadata, got %+v", metadata)
	}
}

func TestCreateCheckoutSessionRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_api_key"}]}`))
	}))
	defer server.Close()

	client := newPayMongoClient("sk_bad", server.URL)
	if _, err := client.CreateCheckoutSession(context.Background(), payMongoCheckoutAttributes{}); err == nil {
		t.Fatalf("expected error for 401 response")
	}
}
