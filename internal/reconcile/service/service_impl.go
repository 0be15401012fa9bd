package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/tokenworks/tokenledger/internal/account/domain"
	"github.com/tokenworks/tokenledger/internal/clock"
	"github.com/tokenworks/tokenledger/internal/config"
	obsmetrics "github.com/tokenworks/tokenledger/internal/observability/metrics"
	"github.com/tokenworks/tokenledger/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	storeTimeout time.Duration
	repo         domain.Repository
	accounts     accountdomain.Repository
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("reconcile.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		storeTimeout: p.Cfg.StoreTimeout,
		repo:         p.Repo,
		accounts:     p.AccountRepo,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Reconcile(ctx context.Context, event *domain.PaymentEvent) domain.Result {
	result := s.reconcile(ctx, event)
	if s.obsMetrics != nil {
		provider := ""
		if event != nil {
			provider = event.Provider
		}
		s.obsMetrics.RecordReconcileOutcome(ctx, provider, string(result.Code))
	}
	return result
}

func (s *Service) reconcile(ctx context.Context, event *domain.PaymentEvent) domain.Result {
	if event == nil {
		return domain.Result{Code: domain.OutcomeBadPayload}
	}

	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	event.EventID = strings.TrimSpace(event.EventID)
	event.AccountID = strings.TrimSpace(event.AccountID)
	event.Email = strings.ToLower(strings.TrimSpace(event.Email))

	if event.Provider == "" || event.EventID == "" {
		return domain.Result{Code: domain.OutcomeBadPayload}
	}
	if event.AccountID == "" && event.Email == "" {
		return domain.Result{Code: domain.OutcomeBadPayload}
	}
	if event.Amount <= 0 {
		return domain.Result{Code: domain.OutcomeInvalidAmount}
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = s.clock.Now()
	}

	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	accountID, terminal := s.resolveAccount(ctx, event)
	if terminal != nil {
		return *terminal
	}

	credit, err := s.repo.ApplyCredit(ctx, s.db, s.genID.Generate(), accountID, event, s.clock.Now())
	if err != nil {
		return s.storeFailure(event, err)
	}

	switch credit.Status {
	case domain.CreditDuplicate:
		s.log.Debug("event already processed",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
		)
		return domain.Result{Code: domain.OutcomeDuplicate, AccountID: accountID}
	case domain.CreditAccountMissing:
		s.log.Warn("account disappeared between resolve and credit",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.String("account_id", accountID.String()),
		)
		return domain.Result{Code: domain.OutcomeAccountNotFound}
	default:
		s.log.Info("credit applied",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.String("account_id", accountID.String()),
			zap.Int64("amount", event.Amount),
			zap.Int64("new_balance", credit.NewBalance),
		)
		return domain.Result{
			Code:       domain.OutcomeCredited,
			AccountID:  accountID,
			NewBalance: credit.NewBalance,
		}
	}
}

// resolveAccount maps the event identifier to exactly one account. Opaque id
// wins when present and valid; email is the fallback and must match exactly
// one row after case folding.
func (s *Service) resolveAccount(ctx context.Context, event *domain.PaymentEvent) (snowflake.ID, *domain.Result) {
	if event.AccountID != "" {
		id, parseErr := snowflake.ParseString(event.AccountID)
		if parseErr == nil {
			account, err := s.accounts.FindByID(ctx, s.db, id)
			if err != nil {
				failure := s.storeFailure(event, err)
				return 0, &failure
			}
			if account != nil {
				return account.ID, nil
			}
		}
		if event.Email == "" {
			s.log.Warn("no account for opaque id",
				zap.String("provider", event.Provider),
				zap.String("event_id", event.EventID),
			)
			return 0, &domain.Result{Code: domain.OutcomeAccountNotFound}
		}
	}

	matches, err := s.accounts.FindByEmail(ctx, s.db, event.Email)
	if err != nil {
		failure := s.storeFailure(event, err)
		return 0, &failure
	}
	switch len(matches) {
	case 0:
		s.log.Warn("no account for email identifier",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
		)
		return 0, &domain.Result{Code: domain.OutcomeAccountNotFound}
	case 1:
		return matches[0].ID, nil
	default:
		// Never pick a winner: crediting either account would be a guess.
		s.log.Error("ambiguous email match, operator attention required",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.Int("matches", len(matches)),
		)
		return 0, &domain.Result{Code: domain.OutcomeDataIntegrity, Err: domain.ErrAmbiguousAccount}
	}
}

// storeFailure classifies a store error. Only a deadline expiry counts as a
// timeout; a canceled context (client gone) is reported as unavailable so the
// receiver does not treat it as a retry hint.
func (s *Service) storeFailure(event *domain.PaymentEvent, err error) domain.Result {
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("store call timed out",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return domain.Result{Code: domain.OutcomeStoreTimeout, Err: err}
	}
	s.log.Error("store call failed",
		zap.String("provider", event.Provider),
		zap.String("event_id", event.EventID),
		zap.Error(err),
	)
	return domain.Result{Code: domain.OutcomeStoreUnavailable, Err: err}
}
