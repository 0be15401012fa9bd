package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountrepo "github.com/tokenworks/tokenledger/internal/account/repository"
	"github.com/tokenworks/tokenledger/internal/clock"
	"github.com/tokenworks/tokenledger/internal/config"
	"github.com/tokenworks/tokenledger/internal/reconcile/domain"
	reconcilerepo "github.com/tokenworks/tokenledger/internal/reconcile/repository"
	reconcileservice "github.com/tokenworks/tokenledger/internal/reconcile/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestReconcileCreditsOnce(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 20)

	accountID := node.Generate()
	seedAccount(t, db, accountID, "a1@example.com", 5_000_000)

	event := &domain.PaymentEvent{
		Provider:   "paymongo",
		EventID:    "ev_1",
		AccountID:  accountID.String(),
		Amount:     1_000_000,
		RawPayload: []byte(`{"id":"ev_1"}`),
	}

	result := svc.Reconcile(ctx, event)
	if result.Code != domain.OutcomeCredited {
		t.Fatalf("expected credited, got %s (%v)", result.Code, result.Err)
	}
	if result.AccountID != accountID {
		t.Fatalf("expected account %s, got %s", accountID, result.AccountID)
	}
	if result.NewBalance != 6_000_000 {
		t.Fatalf("expected new balance 6000000, got %d", result.NewBalance)
	}

	redelivery := svc.Reconcile(ctx, &domain.PaymentEvent{
		Provider:  "paymongo",
		EventID:   "ev_1",
		AccountID: accountID.String(),
		Amount:    1_000_000,
	})
	if redelivery.Code != domain.OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s (%v)", redelivery.Code, redelivery.Err)
	}

	assertBalance(t, db, accountID, 6_000_000)
	assertCount(t, db, "SELECT COUNT(1) FROM processed_events", 1)
}

func TestReconcileRepeatedDeliveriesCreditExactlyOnce(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 21)

	accountID := node.Generate()
	seedAccount(t, db, accountID, "repeat@example.com", 0)

	event := domain.PaymentEvent{
		Provider:  "paymongo",
		EventID:   "ev_repeat",
		AccountID: accountID.String(),
		Amount:    250_000,
	}

	credited := 0
	duplicates := 0
	for i := 0; i < 10; i++ {
		delivery := event
		switch svc.Reconcile(ctx, &delivery).Code {
		case domain.OutcomeCredited:
			credited++
		case domain.OutcomeDuplicate:
			duplicates++
		default:
			t.Fatalf("unexpected outcome on delivery %d", i)
		}
	}

	if credited != 1 || duplicates != 9 {
		t.Fatalf("expected 1 credit and 9 duplicates, got %d and %d", credited, duplicates)
	}
	assertBalance(t, db, accountID, 250_000)
	assertCount(t, db, "SELECT COUNT(1) FROM processed_events", 1)
}

func TestReconcileConcurrentDuplicateDeliveries(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 29)

	// Serialize connection handout so sqlite never sees two writers; the
	// goroutines still race into the service concurrently.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	accountID := node.Generate()
	seedAccount(t, db, accountID, "race@example.com", 0)

	const deliveries = 8
	outcomes := make(chan domain.OutcomeCode, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := svc.Reconcile(ctx, &domain.PaymentEvent{
				Provider:  "paymongo",
				EventID:   "ev_race",
				AccountID: accountID.String(),
				Amount:    400_000,
			})
			outcomes <- result.Code
		}()
	}
	wg.Wait()
	close(outcomes)

	credited := 0
	duplicates := 0
	for code := range outcomes {
		switch code {
		case domain.OutcomeCredited:
			credited++
		case domain.OutcomeDuplicate:
			duplicates++
		default:
			t.Fatalf("unexpected outcome %s", code)
		}
	}
	if credited != 1 || duplicates != deliveries-1 {
		t.Fatalf("expected 1 credit and %d duplicates, got %d and %d", deliveries-1, credited, duplicates)
	}
	assertBalance(t, db, accountID, 400_000)
	assertCount(t, db, "SELECT COUNT(1) FROM processed_events", 1)
}

func TestReconcileCanceledContextIsNotATimeout(t *testing.T) {
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 30)

	accountID := node.Generate()
	seedAccount(t, db, accountID, "gone@example.com", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.Reconcile(ctx, &domain.PaymentEvent{
		Provider:  "paymongo",
		EventID:   "ev_canceled",
		AccountID: accountID.String(),
		Amount:    100,
	})
	if result.Code != domain.OutcomeStoreUnavailable {
		t.Fatalf("expected store_unavailable, got %s", result.Code)
	}
	assertBalance(t, db, accountID, 0)
	assertCount(t, db, "SELECT COUNT(1) FROM processed_events", 0)
}

func TestReconcileRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 22)

	accountID := node.Generate()
	seedAccount(t, db, accountID, "zero@example.com", 100)

	for _, amount := range []int64{0, -5} {
		result := svc.Reconcile(ctx, &domain.PaymentEvent{
			Provider:  "paymongo",
			EventID:   fmt.Sprintf("ev_amount_%d", amount),
			AccountID: accountID.String(),
			Amount:    amount,
		})
		if result.Code != domain.OutcomeInvalidAmount {
			t.Fatalf("amount %d: expected invalid_amount, got %s", amount, result.Code)
		}
	}

	assertBalance(t, db, accountID, 100)
	assertCount(t, db, "SELECT COUNT(1) FROM processed_events", 0)
}

func TestReconcileRejectsMissingIdentifiers(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, _ := newTestService(t, db, 23)

	cases := []*domain.PaymentEvent{
		nil,
		{EventID: "ev_no_provider", AccountID: "1", Amount: 100},
		{Provider: "paymongo", AccountID: "1", Amount: 100},
		{Provider: "paymongo", EventID: "ev_no_identity", Amount: 100},
	}
	for i, event := range cases {
		if result := svc.Reconcile(ctx, event); result.Code != domain.OutcomeBadPayload {
			t.Fatalf("case %d: expected bad_payload, got %s", i, result.Code)
		}
	}
	assertCount(t, db, "SELECT COUNT(1) FROM processed_events", 0)
}

func TestReconcileMatchesEmailExactAfterFolding(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 24)

	accountID := node.Generate()
	seedAccount(t, db, accountID, "jazz@gmail.com", 0)

	result := svc.Reconcile(ctx, &domain.PaymentEvent{
		Provider: "paymongo",
		EventID:  "ev_email_1",
		Email:    "  Jazz@Gmail.com  ",
		Amount:   1_000,
	})
	if result.Code != domain.OutcomeCredited {
		t.Fatalf("expected credited, got %s (%v)", result.Code, result.Err)
	}
	if result.AccountID != accountID {
		t.Fatalf("expected account %s, got %s", accountID, result.AccountID)
	}

	// Substring of a stored address must not match.
	miss := svc.Reconcile(ctx, &domain.PaymentEvent{
		Provider: "paymongo",
		EventID:  "ev_email_2",
		Email:    "jazz@gmail",
		Amount:   1_000,
	})
	if miss.Code != domain.OutcomeAccountNotFound {
		t.Fatalf("expected account_not_found, got %s", miss.Code)
	}

	assertBalance(t, db, accountID, 1_000)
}

func TestReconcileAmbiguousEmailCreditsNothing(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 25)

	firstID := node.Generate()
	secondID := node.Generate()
	seedAccount(t, db, firstID, "shared@example.com", 10)
	seedAccount(t, db, secondID, "SHARED@example.com", 20)

	result := svc.Reconcile(ctx, &domain.PaymentEvent{
		Provider: "paymongo",
		EventID:  "ev_shared",
		Email:    "shared@example.com",
		Amount:   5_000,
	})
	if result.Code != domain.OutcomeDataIntegrity {
		t.Fatalf("expected data_integrity, got %s", result.Code)
	}

	assertBalance(t, db, firstID, 10)
	assertBalance(t, db, secondID, 20)
	assertCount(t, db, "SELECT COUNT(1) FROM processed_events", 0)
}

func TestReconcileOpaqueIDBeatsEmail(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 26)

	targetID := node.Generate()
	otherID := node.Generate()
	seedAccount(t, db, targetID, "target@example.com", 0)
	seedAccount(t, db, otherID, "other@example.com", 0)

	result := svc.Reconcile(ctx, &domain.PaymentEvent{
		Provider:  "paymongo",
		EventID:   "ev_both",
		AccountID: targetID.String(),
		Email:     "other@example.com",
		Amount:    700,
	})
	if result.Code != domain.OutcomeCredited {
		t.Fatalf("expected credited, got %s (%v)", result.Code, result.Err)
	}
	if result.AccountID != targetID {
		t.Fatalf("expected account %s, got %s", targetID, result.AccountID)
	}

	assertBalance(t, db, targetID, 700)
	assertBalance(t, db, otherID, 0)
}

func TestReconcileUnknownOpaqueIDFallsBackToEmail(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 27)

	accountID := node.Generate()
	seedAccount(t, db, accountID, "fallback@example.com", 0)

	result := svc.Reconcile(ctx, &domain.PaymentEvent{
		Provider:  "paymongo",
		EventID:   "ev_fallback",
		AccountID: node.Generate().String(),
		Email:     "fallback@example.com",
		Amount:    300,
	})
	if result.Code != domain.OutcomeCredited {
		t.Fatalf("expected credited, got %s (%v)", result.Code, result.Err)
	}
	if result.AccountID != accountID {
		t.Fatalf("expected account %s, got %s", accountID, result.AccountID)
	}
}

func TestReconcileUnknownAccountID(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newTestService(t, db, 28)

	result := svc.Reconcile(ctx, &domain.PaymentEvent{
		Provider:  "paymongo",
		EventID:   "ev_missing",
		AccountID: node.Generate().String(),
		Amount:    100,
	})
	if result.Code != domain.OutcomeAccountNotFound {
		t.Fatalf("expected account_not_found, got %s", result.Code)
	}
	assertCount(t, db, "SELECT COUNT(1) FROM processed_events", 0)
}

func newTestService(t *testing.T, db *gorm.DB, nodeID int64) (domain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	svc := reconcileservice.NewService(reconcileservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Cfg:         config.Config{StoreTimeout: 2 * time.Second},
		Repo:        reconcilerepo.Provide(),
		AccountRepo: accountrepo.Provide(),
	})
	return svc, node
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE accounts (
			id BIGINT PRIMARY KEY,
			email TEXT,
			token_balance BIGINT NOT NULL DEFAULT 0,
			last_topup TIMESTAMP,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX ix_accounts_email_lower ON accounts(LOWER(email))`,
		`CREATE TABLE processed_events (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			event_id TEXT NOT NULL,
			account_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			outcome TEXT NOT NULL,
			payload TEXT,
			received_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_processed_events_provider_event_id ON processed_events(provider, event_id)`,
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema exec failed: %v", err)
		}
	}

	return db
}

func seedAccount(t *testing.T, db *gorm.DB, id snowflake.ID, email string, balance int64) {
	t.Helper()

	now := time.Now().UTC()
	err := db.Exec(
		"INSERT INTO accounts (id, email, token_balance, metadata, created_at, updated_at) VALUES (?, ?, ?, '{}', ?, ?)",
		id,
		email,
		balance,
		now,
		now,
	).Error
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func assertBalance(t *testing.T, db *gorm.DB, id snowflake.ID, expected int64) {
	t.Helper()

	var balance int64
	if err := db.Raw("SELECT token_balance FROM accounts WHERE id = ?", id).Scan(&balance).Error; err != nil {
		t.Fatalf("query balance: %v", err)
	}
	if balance != expected {
		t.Fatalf("expected balance %d, got %d", expected, balance)
	}
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()

	var count int64
	if err := db.Raw(query).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d, got %d", expected, count)
	}
}
