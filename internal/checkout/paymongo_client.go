package checkout

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultPayMongoBaseURL = "https://api.paymongo.com"

// payMongoClient is a minimal REST client for the PayMongo checkout API.
type payMongoClient struct {
	secretKey string
	baseURL   string
	httpc     *http.Client
}

func newPayMongoClient(secretKey, baseURL string) *payMongoClient {
	if baseURL == "" {
		baseURL = defaultPayMongoBaseURL
	}
	return &payMongoClient{
		secretKey: secretKey,
		baseURL:   baseURL,
		httpc:     &http.Client{Timeout: 15 * time.Second},
	}
}

type payMongoCheckoutRequest struct {
	Data payMongoCheckoutRequestData `json:"data"`
}

type payMongoCheckoutRequestData struct {
	Attributes payMongoCheckoutAttributes `json:"attributes"`
}

type payMongoCheckoutAttributes struct {
	Description        string             `json:"description"`
	ShowLineItems      bool               `json:"show_line_items"`
	SendEmailReceipt   bool               `json:"send_email_receipt"`
	LineItems          []payMongoLineItem `json:"line_items"`
	PaymentMethodTypes []string           `json:"payment_method_types"`
	SuccessURL         string             `json:"success_url"`
	CancelURL          string             `json:"cancel_url"`
	Metadata           map[string]string  `json:"metadata"`
}

type payMongoLineItem struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

type payMongoCheckoutResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"attributes"`
	} `json:"data"`
}

func (c *payMongoClient) CreateCheckoutSession(ctx context.Context, attributes payMongoCheckoutAttributes) (*payMongoCheckoutResponse, error) {
	body, err := json.Marshal(payMongoCheckoutRequest{
		Data: payMongoCheckoutRequestData{Attributes: attributes},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout_sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paymongo checkout session failed: status %d: %s", resp.StatusCode, string(payload))
	}

	var decoded payMongoCheckoutResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("paymongo checkout session response: %w", err)
	}
	if decoded.Data.ID == "" || decoded.Data.Attributes.CheckoutURL == "" {
		return nil, fmt.Errorf("paymongo checkout session response missing id or url")
	}
	return &decoded, nil
}
