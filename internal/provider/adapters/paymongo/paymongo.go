package paymongo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	providerdomain "github.com/tokenworks/tokenledger/internal/provider/domain"
	reconciledomain "github.com/tokenworks/tokenledger/internal/reconcile/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "paymongo"
}

func (f *Factory) NewAdapter(cfg providerdomain.AdapterConfig) (providerdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, providerdomain.ErrInvalidConfig
	}
	return &Adapter{webhookSecret: secret}, nil
}

type Adapter struct {
	webhookSecret string
}

// Verify checks the Paymongo-Signature header. The header carries a unix
// timestamp plus a test-mode (te) and/or live-mode (li) HMAC-SHA256 of
// "<timestamp>.<payload>"; either digest matching is acceptance.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Paymongo-Signature"))
	if sigHeader == "" {
		return providerdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignature(sigHeader)
	if err != nil {
		return providerdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return providerdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*reconciledomain.PaymentEvent, error) {
	var envelope paymongoEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, providerdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(envelope.Data.ID) == "" {
		return nil, providerdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(envelope.Data.Attributes.Type) {
	case "checkout_session.payment.paid", "link.payment.paid", "payment.paid":
	default:
		return nil, providerdomain.ErrEventIgnored
	}

	resource, err := decodeResource(envelope.Data.Attributes.Data)
	if err != nil {
		return nil, err
	}

	metadata := resource.Attributes.Metadata
	if len(metadata) == 0 {
		metadata = resource.Metadata
	}

	accountID := readMetadataValue(metadata, "account_id")
	email := readMetadataValue(metadata, "email")
	amount := readMetadataAmount(metadata, "token_credits")

	receivedAt := timestamp(resource.Attributes.PaidAt, envelope.Data.Attributes.Timestamp)
	return &reconciledomain.PaymentEvent{
		Provider:   "paymongo",
		EventID:    envelope.Data.ID,
		AccountID:  accountID,
		Email:      email,
		Amount:     amount,
		ReceivedAt: receivedAt,
		RawPayload: payload,
	}, nil
}

type paymongoEnvelope struct {
	Data paymongoEventData `json:"data"`
}

type paymongoEventData struct {
	ID         string              `json:"id"`
	Attributes paymongoEventAttrib `json:"attributes"`
}

type paymongoEventAttrib struct {
	Type      string          `json:"type"`
	LiveMode  bool            `json:"livemode"`
	Timestamp int64           `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

type paymongoResource struct {
	ID         string                 `json:"id"`
	Attributes paymongoResourceAttrib `json:"attributes"`
	Metadata   map[string]any         `json:"metadata"`
}

type paymongoResourceAttrib struct {
	PaidAt   int64          `json:"paid_at"`
	Metadata map[string]any `json:"metadata"`
}

// decodeResource handles both delivery shapes PayMongo sends: the resource
// nested under attributes.data, and older deliveries where attributes.data IS
// the resource attributes with metadata at the top level.
func decodeResource(raw json.RawMessage) (*paymongoResource, error) {
	if len(raw) == 0 {
		return nil, providerdomain.ErrInvalidPayload
	}

	var resource paymongoResource
	if err := json.Unmarshal(raw, &resource); err != nil {
		return nil, providerdomain.ErrInvalidPayload
	}
	if len(resource.Attributes.Metadata) > 0 || len(resource.Metadata) > 0 {
		return &resource, nil
	}

	var flat paymongoResourceAttrib
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, providerdomain.ErrInvalidPayload
	}
	return &paymongoResource{Attributes: flat}, nil
}

func parseSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			timestamp = value
		case "te", "li":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		// A fractional credit amount is never valid; dropping it here lets
		// the reconciler reject the event instead of truncating it.
		if cast == 0 || cast != math.Trunc(cast) {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	case int64:
		return strconv.FormatInt(cast, 10)
	case int:
		return strconv.Itoa(cast)
	}
	return ""
}

func readMetadataAmount(metadata map[string]any, key string) int64 {
	raw := readMetadataValue(metadata, key)
	if raw == "" {
		return 0
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return amount
}
