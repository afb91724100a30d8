package engine

import (
	"context"

	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
)

// Embedder maps a transaction to its embedding.
type Embedder interface {
	EmbedTransaction(ctx context.Context, txn *model.Transaction) (model.Vector, error)
	ModelName() string
}

// SimilarFinder retrieves reviewed transactions resembling a vector.
type SimilarFinder interface {
	FindSimilar(ctx context.Context, vec model.Vector, companyID string, topK int, minSimilarity float64) ([]retrieval.Match, error)
}

// KeywordSuggester proposes accounts from the keyword table.
type KeywordSuggester interface {
	Suggest(ctx context.Context, txn model.Transaction, chart *model.ChartOfAccounts) (model.Candidates, error)
}

// Store is the persistence the engine reads and writes.
type Store interface {
	ListAccounts(ctx context.Context, companyID string) ([]model.Account, error)
	GetTransaction(ctx context.Context, companyID, id string) (*model.Transaction, error)
	FindReviewedByDescription(ctx context.Context, companyID, normalized string, limit int) ([]model.Transaction, error)
	SavePrediction(ctx context.Context, companyID, id string, prediction *model.Prediction) (bool, error)
}
