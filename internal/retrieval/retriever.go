package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/service"
	"github.com/Veraticus/coa-classifier/internal/telemetry"
)

// DefaultOverfetch is how many extra neighbours are pulled from the index
// so that filtering and date tie-breaks still fill top_k.
const DefaultOverfetch = 10

// Match is a reviewed transaction resembling the query.
type Match struct {
	Transaction model.Transaction `json:"transaction"`
	AccountID   int64             `json:"assigned_account_id"`
	Similarity  float64           `json:"similarity"`
}

// Retriever ranks historical matches for a company. The index supplies
// candidates; the store is authoritative for tenancy, review status and
// the assigned account.
type Retriever struct {
	index     Index
	store     service.TransactionStore
	metrics   *telemetry.Metrics
	overfetch int
}

// NewRetriever creates a Retriever.
func NewRetriever(index Index, store service.TransactionStore, metrics *telemetry.Metrics) *Retriever {
	return &Retriever{
		index:     index,
		store:     store,
		metrics:   metrics,
		overfetch: DefaultOverfetch,
	}
}

// ClampSimilarity maps a cosine similarity into [0,1].
func ClampSimilarity(s float64) float64 {
	return model.ClampConfidence(s)
}

// FindSimilar returns up to topK reviewed transactions of companyID whose
// similarity to vec is at least minSimilarity, ordered by similarity
// descending, then date descending. No result is not an error.
func (r *Retriever) FindSimilar(ctx context.Context, vec model.Vector, companyID string, topK int, minSimilarity float64) ([]Match, error) {
	if companyID == "" {
		return nil, common.InvalidInput("company id is required")
	}
	if topK <= 0 {
		return nil, common.InvalidInput("top_k must be positive, got %d", topK)
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return nil, common.InvalidInput("min_similarity must be between 0 and 1, got %v", minSimilarity)
	}
	if err := vec.Validate(); err != nil {
		return nil, common.InvalidInput("query vector: %v", err)
	}

	start := time.Now()
	defer func() { r.metrics.Retrieval(time.Since(start)) }()

	hits, err := r.index.Query(ctx, companyID, vec, topK+r.overfetch)
	if err != nil {
		return nil, fmt.Errorf("querying similarity index: %w", err)
	}

	similarity := make(map[string]float64, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		s := ClampSimilarity(h.Similarity)
		if s < minSimilarity {
			continue
		}
		similarity[h.TransactionID] = s
		ids = append(ids, h.TransactionID)
	}
	if len(ids) == 0 {
		return []Match{}, nil
	}

	txns, err := r.store.GetTransactionsByIDs(ctx, companyID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading matched transactions: %w", err)
	}

	matches := make([]Match, 0, len(txns))
	for _, id := range ids {
		txn, ok := txns[id]
		if !ok || txn.CompanyID != companyID || !txn.IsReviewed() || txn.AssignedAccountID == nil {
			continue
		}
		matches = append(matches, Match{
			Transaction: txn,
			AccountID:   *txn.AssignedAccountID,
			Similarity:  similarity[id],
		})
	}

	SortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// SortMatches orders by similarity descending, then date descending, then
// transaction id.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Transaction.Date.Equal(b.Transaction.Date) {
			return a.Transaction.Date.After(b.Transaction.Date)
		}
		return a.Transaction.ID < b.Transaction.ID
	})
}

// Upsert indexes a reviewed transaction under its company. Unreviewed
// transactions are ignored.
func (r *Retriever) Upsert(ctx context.Context, txn model.Transaction, vec model.Vector) error {
	if !txn.IsReviewed() || txn.AssignedAccountID == nil {
		return nil
	}
	return r.index.Upsert(ctx, txn.CompanyID, Document{
		TransactionID: txn.ID,
		Content:       txn.NormalizedDescription,
		Vector:        vec,
		AccountID:     *txn.AssignedAccountID,
	})
}

// Indexed returns how many transactions of companyID are indexed.
func (r *Retriever) Indexed(companyID string) int {
	return r.index.Count(companyID)
}

// Warm loads every reviewed, embedded transaction of the given companies
// into the index. It returns the number of entries written.
func (r *Retriever) Warm(ctx context.Context, companyIDs []string) (int, error) {
	total := 0
	for _, companyID := range companyIDs {
		txns, err := r.store.ListReviewedWithEmbedding(ctx, companyID, 0)
		if err != nil {
			return total, fmt.Errorf("loading history for %s: %w", companyID, err)
		}
		for _, txn := range txns {
			if err := r.Upsert(ctx, txn, txn.Embedding); err != nil {
				return total, err
			}
			total++
		}
		common.LogDebug(common.WithCompany(ctx, companyID), "Warmed similarity index", common.Fields{
			"indexed": len(txns),
		})
	}
	return total, nil
}
