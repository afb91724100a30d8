package feedback

import (
	"context"
	"fmt"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/storage"
)

// SelectorConfig controls the review queue.
type SelectorConfig struct {
	// Threshold is used when a caller does not supply one.
	Threshold float64
	// HighPriorityBelow marks items below this confidence as high priority.
	HighPriorityBelow float64
}

// DefaultSelectorConfig returns the default review queue settings.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Threshold:         0.7,
		HighPriorityBelow: 0.5,
	}
}

// Selector picks unreviewed, low-confidence predictions for human review.
type Selector struct {
	store  SelectorStore
	config SelectorConfig
}

// NewSelector creates a selector.
func NewSelector(store SelectorStore, config SelectorConfig) *Selector {
	return &Selector{store: store, config: config}
}

// LowConfidence returns up to limit SUGGESTED transactions whose stored
// confidence is below threshold and which have never received feedback,
// least confident first. A nil threshold uses the configured default; an
// explicit zero matches nothing.
func (s *Selector) LowConfidence(ctx context.Context, companyID string, threshold *float64, limit int) ([]model.ReviewItem, error) {
	if !storage.ValidCompanyID(companyID) {
		return nil, common.InvalidInput("malformed company id %q", companyID)
	}
	cutoff := s.Threshold(threshold)
	if cutoff < 0 || cutoff > 1 {
		return nil, common.InvalidInput("threshold %.3f must be between 0 and 1", cutoff)
	}
	if limit < 0 {
		return nil, common.InvalidInput("limit must not be negative")
	}

	txns, err := s.store.LowConfidence(ctx, companyID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing low confidence transactions: %w", err)
	}
	accounts, err := s.store.ListAccounts(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading chart of accounts: %w", err)
	}
	chart := model.NewChartOfAccounts(accounts)

	items := make([]model.ReviewItem, 0, len(txns))
	for _, txn := range txns {
		item := model.ReviewItem{Transaction: txn, Priority: model.PriorityMedium}
		if txn.Prediction != nil {
			if txn.Prediction.Confidence < s.config.HighPriorityBelow {
				item.Priority = model.PriorityHigh
			}
			if account, ok := chart.ByID(txn.Prediction.AccountID); ok {
				item.AccountCode = account.Code
				item.AccountName = account.Name
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// Threshold resolves an optional threshold against the configured default.
func (s *Selector) Threshold(threshold *float64) float64 {
	if threshold == nil {
		return s.config.Threshold
	}
	return *threshold
}
