// Package testutil provides shared test helpers: an isolated in-memory
// database seeded with a chart of accounts, and transaction fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/storage"
	"github.com/Veraticus/coa-classifier/internal/testutil/chart"
)

// DefaultCompany is the tenant used by helpers that need one.
const DefaultCompany = "acme"

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage   *storage.SQLiteStorage
	Accounts  chart.Accounts
	t         *testing.T
	CompanyID string
}

// SetupTestDB creates a migrated in-memory database and seeds the accounts
// configured on the builder for DefaultCompany. configure may be nil.
//
// Example:
//
//	db := testutil.SetupTestDB(t, func(b chart.Builder) chart.Builder {
//		return b.WithBasicAccounts()
//	})
func SetupTestDB(t *testing.T, configure func(chart.Builder) chart.Builder) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	builder := chart.NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}
	accounts, err := builder.Build(ctx, store, DefaultCompany)
	if err != nil {
		t.Fatalf("failed to build chart: %v", err)
	}

	return &TestDB{
		Storage:   store,
		Accounts:  accounts,
		CompanyID: DefaultCompany,
		t:         t,
	}
}

// TxnOption customises a transaction created by CreateTransaction.
type TxnOption func(*model.Transaction)

// WithDate sets the transaction date.
func WithDate(date time.Time) TxnOption {
	return func(txn *model.Transaction) { txn.Date = date }
}

// WithCounterparty sets the transaction counterparty.
func WithCounterparty(name string) TxnOption {
	return func(txn *model.Transaction) { txn.Counterparty = name }
}

// Reviewed marks the transaction confirmed to the account with code.
func (db *TestDB) Reviewed(code string) TxnOption {
	db.t.Helper()
	id := db.Accounts.MustGet(db.t, code).ID
	return func(txn *model.Transaction) {
		txn.Status = model.StatusConfirmed
		txn.AssignedAccountID = &id
	}
}

// CreateTransaction stores an unclassified transaction for the company.
func (db *TestDB) CreateTransaction(description, amount string, opts ...TxnOption) model.Transaction {
	db.t.Helper()
	txn := model.Transaction{
		ID:          uuid.NewString(),
		CompanyID:   db.CompanyID,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&txn)
	}
	if err := db.Storage.CreateTransaction(context.Background(), &txn); err != nil {
		db.t.Fatalf("failed to create transaction %q: %v", description, err)
	}
	return txn
}

// Suggest materialises a prediction on a stored transaction.
func (db *TestDB) Suggest(txn model.Transaction, code string, confidence float64) {
	db.t.Helper()
	ok, err := db.Storage.SavePrediction(context.Background(), db.CompanyID, txn.ID, &model.Prediction{
		AccountID:    db.Accounts.MustGet(db.t, code).ID,
		Confidence:   confidence,
		Reason:       "test prediction",
		Source:       model.StrategyAccountType,
		ClassifiedAt: time.Now().UTC(),
	})
	if err != nil || !ok {
		db.t.Fatalf("failed to save prediction for %s: ok=%v err=%v", txn.ID, ok, err)
	}
}
