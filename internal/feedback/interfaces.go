// Package feedback records human reviews of predictions and turns the
// resulting ledger into review queues, accuracy trends and retraining advice.
package feedback

import (
	"context"
	"time"

	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/service"
)

// Embedder produces the vector stored with a reviewed transaction.
type Embedder interface {
	EmbedTransaction(ctx context.Context, txn *model.Transaction) (model.Vector, error)
}

// Indexer receives reviewed transactions once their feedback is committed.
type Indexer interface {
	Upsert(ctx context.Context, txn model.Transaction, vec model.Vector) error
}

// RecorderStore is the persistence used by the Recorder.
type RecorderStore interface {
	GetTransaction(ctx context.Context, companyID, id string) (*model.Transaction, error)
	RecordFeedback(ctx context.Context, write service.FeedbackWrite) (*model.FeedbackOutcome, error)
}

// SelectorStore is the persistence used by the Selector.
type SelectorStore interface {
	ListAccounts(ctx context.Context, companyID string) ([]model.Account, error)
	LowConfidence(ctx context.Context, companyID string, threshold float64, limit int) ([]model.Transaction, error)
}

// AnalyzerStore is the persistence used by the Analyzer.
type AnalyzerStore interface {
	GetMetrics(ctx context.Context, companyID string, from, to time.Time) ([]model.PredictionMetrics, error)
	CountCorrectionsSince(ctx context.Context, companyID string, since time.Time) (int, error)
	RecordRetraining(ctx context.Context, companyID string, at time.Time, note string) error
	LastRetraining(ctx context.Context, companyID string) (*time.Time, error)
}
