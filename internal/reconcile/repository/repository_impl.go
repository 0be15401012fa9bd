package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tokenworks/tokenledger/internal/reconcile/domain"
	pkgdb "github.com/tokenworks/tokenledger/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ApplyCredit(
	ctx context.Context,
	db *gorm.DB,
	markerID snowflake.ID,
	accountID snowflake.ID,
	event *domain.PaymentEvent,
	now time.Time,
) (domain.CreditResult, error) {

	if event == nil {
		return domain.CreditResult{}, domain.ErrInvalidEvent
	}

	marker := domain.ProcessedEvent{
		ID:          markerID,
		Provider:    event.Provider,
		EventID:     event.EventID,
		AccountID:   accountID,
		Amount:      event.Amount,
		Outcome:     string(domain.OutcomeCredited),
		Payload:     datatypes.JSON(event.RawPayload),
		ReceivedAt:  event.ReceivedAt,
		ProcessedAt: now,
	}

	var out domain.CreditResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Let gorm compile the conflict clause per dialect (DO NOTHING on
		// postgres/sqlite, a no-op ON DUPLICATE KEY UPDATE on mysql).
		result := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).Create(&marker)
		if result.Error != nil {
			if pkgdb.IsDuplicateKeyErr(result.Error) {
				out.Status = domain.CreditDuplicate
				return nil
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			out.Status = domain.CreditDuplicate
			return nil
		}

		result = tx.WithContext(ctx).Exec(
			`UPDATE accounts
			 SET token_balance = token_balance + ?, last_topup = ?, updated_at = ?
			 WHERE id = ?`,
			event.Amount,
			now,
			now,
			accountID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Roll the marker back so a later delivery can retry once the
			// account exists.
			return domain.ErrAccountNotFound
		}

		var balance int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT token_balance FROM accounts WHERE id = ?`,
			accountID,
		).Scan(&balance).Error; err != nil {
			return err
		}

		out.Status = domain.CreditApplied
		out.NewBalance = balance
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.CreditResult{Status: domain.CreditAccountMissing}, nil
		}
		return domain.CreditResult{}, err
	}
	return out, nil
}

func (r *repo) FindProcessed(ctx context.Context, db *gorm.DB, provider, eventID string) (*domain.ProcessedEvent, error) {
	var item domain.ProcessedEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, event_id, account_id, amount, outcome, payload, received_at, processed_at
		 FROM processed_events
		 WHERE provider = ? AND event_id = ?
		 LIMIT 1`,
		provider,
		eventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
