// Package engine ranks chart-of-accounts candidates for transactions by
// combining historical, keyword and account-type strategies.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
	"github.com/Veraticus/coa-classifier/internal/storage"
	"github.com/Veraticus/coa-classifier/internal/telemetry"
)

// Config holds configuration options for the suggestion engine.
type Config struct {
	DefaultExpenseCode string
	DefaultRevenueCode string
	ExactSimilarity    float64
	PartialSimilarity  float64
	TopK               int
	MaxCandidates      int
	HistoryLimit       int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultExpenseCode: "5910",
		DefaultRevenueCode: "4920",
		ExactSimilarity:    0.95,
		PartialSimilarity:  0.70,
		TopK:               5,
		MaxCandidates:      5,
		HistoryLimit:       200,
	}
}

// Validate checks the thresholds are usable.
func (c Config) Validate() error {
	if c.PartialSimilarity < 0 || c.PartialSimilarity > 1 || c.ExactSimilarity < 0 || c.ExactSimilarity > 1 {
		return fmt.Errorf("similarity thresholds must be between 0 and 1")
	}
	if c.PartialSimilarity > c.ExactSimilarity {
		return fmt.Errorf("partial similarity %.2f exceeds exact similarity %.2f", c.PartialSimilarity, c.ExactSimilarity)
	}
	if c.TopK <= 0 || c.MaxCandidates <= 0 {
		return fmt.Errorf("top_k and max_candidates must be positive")
	}
	return nil
}

// Result is the outcome of one suggestion run.
type Result struct {
	Suggestion *model.Candidate  `json:"suggestion"`
	Candidates model.Candidates  `json:"candidates"`
	Similar    []retrieval.Match `json:"similar_transactions"`
	Model      string            `json:"model"`
	Degraded   bool              `json:"degraded"`
}

// Alternates returns every candidate after the top one.
func (r *Result) Alternates() model.Candidates {
	if len(r.Candidates) <= 1 {
		return model.Candidates{}
	}
	return r.Candidates[1:]
}

// Engine orchestrates the suggestion strategies. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	store      Store
	embedder   Embedder
	finder     SimilarFinder
	metrics    *telemetry.Metrics
	strategies []Strategy
	config     Config
}

// New creates an engine. keywords may be nil to disable keyword matching.
func New(store Store, embedder Embedder, finder SimilarFinder, keywords KeywordSuggester, metrics *telemetry.Metrics, config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultConfig().HistoryLimit
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		finder:   finder,
		metrics:  metrics,
		config:   config,
		strategies: []Strategy{
			&historicalStrategy{store: store, exactSimilarity: config.ExactSimilarity, historyLimit: config.HistoryLimit},
			&keywordStrategy{suggester: keywords},
			&accountTypeStrategy{expenseCode: config.DefaultExpenseCode, revenueCode: config.DefaultRevenueCode},
		},
	}, nil
}

// Suggest ranks accounts for txn. Only malformed input is an error; an
// embedding outage degrades historical matching to exact descriptions.
func (e *Engine) Suggest(ctx context.Context, txn model.Transaction) (*Result, error) {
	if !storage.ValidCompanyID(txn.CompanyID) {
		return nil, common.InvalidInput("malformed company id %q", txn.CompanyID)
	}
	if strings.TrimSpace(txn.Description) == "" {
		return nil, common.InvalidInput("description is required")
	}
	if txn.NormalizedDescription == "" {
		txn.NormalizedDescription = model.Normalize(txn.Description)
	}
	ctx = common.WithCompany(ctx, txn.CompanyID)

	accounts, err := e.store.ListAccounts(ctx, txn.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("loading chart of accounts: %w", err)
	}
	ev := &evaluation{
		txn:   txn,
		chart: model.NewChartOfAccounts(accounts),
	}
	result := &Result{Model: e.embedder.ModelName(), Similar: []retrieval.Match{}}

	vec, err := e.queryVector(ctx, &txn)
	switch {
	case err == nil:
		similar, err := e.finder.FindSimilar(ctx, vec, txn.CompanyID, e.config.TopK, e.config.PartialSimilarity)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			common.LogError(ctx, err, "Similarity search failed; continuing without it", common.Fields{
				"transaction_id": txn.ID,
			})
			ev.degraded = true
			break
		}
		ev.similar = similar
		result.Similar = similar
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		if !errors.Is(err, common.ErrModelUnavailable) {
			common.LogError(ctx, err, "Embedding failed", common.Fields{"transaction_id": txn.ID})
		}
		common.Logger(ctx).Warn("Embedding model unavailable; using string matching only",
			"transaction_id", txn.ID,
			"error", err)
		ev.degraded = true
	}
	result.Degraded = ev.degraded

	var all model.Candidates
	for _, s := range e.strategies {
		found, err := s.evaluate(ctx, ev)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			common.LogError(ctx, err, "Strategy failed", common.Fields{
				"strategy":       string(s.Kind()),
				"transaction_id": txn.ID,
			})
			continue
		}
		all = append(all, found...)
	}

	result.Candidates = all.Dedupe().TopN(e.config.MaxCandidates)
	if err := result.Candidates.Validate(); err != nil {
		return nil, fmt.Errorf("ranking candidates: %w", err)
	}
	if len(result.Candidates) > 0 {
		top := result.Candidates[0]
		result.Suggestion = &top
		e.metrics.Classification(result.Degraded, string(top.Source), top.Confidence)
	} else {
		e.metrics.Classification(result.Degraded, "", 0)
	}

	common.LogDebug(ctx, "Suggested accounts", common.Fields{
		"transaction_id": txn.ID,
		"candidates":     len(result.Candidates),
		"degraded":       result.Degraded,
	})
	return result, nil
}

// queryVector reuses a current stored embedding before asking the model.
func (e *Engine) queryVector(ctx context.Context, txn *model.Transaction) (model.Vector, error) {
	if txn.HasEmbedding() && !txn.EmbeddingStale {
		return txn.Embedding, nil
	}
	return e.embedder.EmbedTransaction(ctx, txn)
}

// Classification is the outcome of classifying a stored transaction.
type Classification struct {
	*Result
	Transaction  *model.Transaction `json:"transaction"`
	Materialized bool               `json:"materialized"`
}

// ClassifyTransaction runs Suggest on a stored transaction and records the
// top suggestion on it, moving it to SUGGESTED. A transaction reviewed in
// the meantime keeps its review; Materialized reports false.
func (e *Engine) ClassifyTransaction(ctx context.Context, companyID, transactionID string) (*Classification, error) {
	if !storage.ValidCompanyID(companyID) {
		return nil, common.InvalidInput("malformed company id %q", companyID)
	}
	txn, err := e.store.GetTransaction(ctx, companyID, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.IsReviewed() {
		return nil, common.InvalidInput("transaction %s was already reviewed", transactionID)
	}

	result, err := e.Suggest(ctx, *txn)
	if err != nil {
		return nil, err
	}

	out := &Classification{Result: result, Transaction: txn}
	if result.Suggestion == nil {
		return out, nil
	}

	prediction := &model.Prediction{
		AccountID:    result.Suggestion.AccountID,
		Confidence:   result.Suggestion.Confidence,
		Reason:       result.Suggestion.Reason,
		Source:       result.Suggestion.Source,
		Alternates:   result.Alternates(),
		ClassifiedAt: time.Now().UTC(),
	}
	saved, err := e.store.SavePrediction(ctx, companyID, transactionID, prediction)
	if err != nil {
		return nil, fmt.Errorf("saving prediction: %w", err)
	}
	out.Materialized = saved
	if saved {
		txn.Prediction = prediction
		txn.Status = model.StatusSuggested
	} else {
		common.LogInfo(common.WithCompany(ctx, companyID), "Transaction reviewed before prediction was saved", common.Fields{
			"transaction_id": transactionID,
		})
	}
	return out, nil
}
