package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CreditStatus is the store-level outcome of the atomic credit attempt.
type CreditStatus int

const (
	CreditApplied CreditStatus = iota
	CreditDuplicate
	CreditAccountMissing
)

type CreditResult struct {
	Status     CreditStatus
	NewBalance int64
}

type Repository interface {
	// ApplyCredit inserts the idempotency marker and increments the balance
	// in one transaction. The marker insert uses the unique index on
	// (provider, event_id); losing that race yields CreditDuplicate with no
	// mutation. A missing account rolls the marker back.
	ApplyCredit(ctx context.Context, db *gorm.DB, markerID snowflake.ID, accountID snowflake.ID, event *PaymentEvent, now time.Time) (CreditResult, error)
	FindProcessed(ctx context.Context, db *gorm.DB, provider, eventID string) (*ProcessedEvent, error)
}
