// Package service defines the interfaces shared between application layers.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// Storage defines the contract for our persistence layer. Every method is
// scoped to a single company; no method returns rows of another company.
type Storage interface {
	AccountStore
	TransactionStore
	FeedbackStore
	MetricsStore

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// AccountStore persists the chart of accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, companyID string, id int64) (*model.Account, error)
	GetAccountByCode(ctx context.Context, companyID, code string) (*model.Account, error)
	ListAccounts(ctx context.Context, companyID string) ([]model.Account, error)
	ListCompanies(ctx context.Context) ([]string, error)
}

// TransactionStore persists transactions, their predictions and embeddings.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, companyID, id string) (*model.Transaction, error)
	GetTransactionsByIDs(ctx context.Context, companyID string, ids []string) (map[string]model.Transaction, error)
	FindReviewedByDescription(ctx context.Context, companyID, normalized string, limit int) ([]model.Transaction, error)
	ListReviewedWithEmbedding(ctx context.Context, companyID string, limit int) ([]model.Transaction, error)
	SavePrediction(ctx context.Context, companyID, id string, prediction *model.Prediction) (bool, error)
	ListNeedingEmbedding(ctx context.Context, companyID string, limit int, exclude []string) ([]model.Transaction, error)
	SetEmbedding(ctx context.Context, companyID, id string, vec model.Vector) (bool, error)
	EmbeddingStats(ctx context.Context, companyID string) (*model.EmbeddingStats, error)
	LowConfidence(ctx context.Context, companyID string, threshold float64, limit int) ([]model.Transaction, error)
}

// FeedbackWrite is everything persisted by a single feedback call.
type FeedbackWrite struct {
	Entry *model.FeedbackEntry
	// Embedding replaces the transaction embedding; nil marks it stale.
	Embedding model.Vector
	// CallerConfidence is used when no prediction was materialised.
	CallerConfidence float64
}

// FeedbackStore persists the append-only feedback ledger.
type FeedbackStore interface {
	RecordFeedback(ctx context.Context, write FeedbackWrite) (*model.FeedbackOutcome, error)
	ListFeedback(ctx context.Context, companyID string, since time.Time) ([]model.FeedbackEntry, error)
	CountCorrectionsSince(ctx context.Context, companyID string, since time.Time) (int, error)
}

// MetricsStore exposes the daily prediction rollup and retraining events.
type MetricsStore interface {
	GetMetrics(ctx context.Context, companyID string, from, to time.Time) ([]model.PredictionMetrics, error)
	RecordRetraining(ctx context.Context, companyID string, at time.Time, note string) error
	LastRetraining(ctx context.Context, companyID string) (*time.Time, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions returns the backoff used for contended writes.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:  5,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
}
