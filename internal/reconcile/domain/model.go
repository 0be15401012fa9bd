package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentEvent is the canonical payment-confirmation event parsed by
// provider adapters. AccountID and Email are the two identifier kinds; at
// most one is reliably present on any given delivery.
type PaymentEvent struct {
	Provider   string
	EventID    string
	AccountID  string
	Email      string
	Amount     int64
	ReceivedAt time.Time
	RawPayload []byte
}

// ProcessedEvent is the durable idempotency marker. The unique index on
// (provider, event_id) is the concurrency gate for duplicate deliveries.
type ProcessedEvent struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	Provider    string         `gorm:"type:text;not null;uniqueIndex:ux_processed_events_provider_event_id,priority:1"`
	EventID     string         `gorm:"type:text;not null;uniqueIndex:ux_processed_events_provider_event_id,priority:2"`
	AccountID   snowflake.ID   `gorm:"not null;index"`
	Amount      int64          `gorm:"not null"`
	Outcome     string         `gorm:"type:text;not null"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt  time.Time      `gorm:"not null"`
	ProcessedAt time.Time      `gorm:"not null"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }

// OutcomeCode classifies the terminal state of one reconciliation run.
type OutcomeCode string

const (
	OutcomeCredited         OutcomeCode = "credited"
	OutcomeDuplicate        OutcomeCode = "duplicate"
	OutcomeBadPayload       OutcomeCode = "bad_payload"
	OutcomeAccountNotFound  OutcomeCode = "account_not_found"
	OutcomeDataIntegrity    OutcomeCode = "data_integrity"
	OutcomeInvalidAmount    OutcomeCode = "invalid_amount"
	OutcomeStoreTimeout     OutcomeCode = "store_timeout"
	OutcomeStoreUnavailable OutcomeCode = "store_unavailable"
)

// Result is the discriminated outcome of one reconciliation run. The
// reconciler never lets an error escape its boundary; transient store
// failures carry the underlying error so callers can decide on retry.
type Result struct {
	Code       OutcomeCode
	AccountID  snowflake.ID
	NewBalance int64
	Err        error
}

// Credited reports whether the balance mutation happened on this run.
func (r Result) Credited() bool {
	return r.Code == OutcomeCredited
}

// Transient reports whether re-invoking with the same event is safe and
// potentially useful. Idempotency on event_id makes retry harmless.
func (r Result) Transient() bool {
	return r.Code == OutcomeStoreTimeout || r.Code == OutcomeStoreUnavailable
}
