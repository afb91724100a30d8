package pattern

import (
	"context"
	"fmt"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// Suggester turns keyword hits into candidates from a company's chart.
type Suggester struct {
	matcher   Matcher
	validator DirectionValidator
}

// NewSuggester creates a new keyword suggester.
func NewSuggester(matcher Matcher, validator DirectionValidator) *Suggester {
	return &Suggester{
		matcher:   matcher,
		validator: validator,
	}
}

// Suggest returns one candidate per matched account. Rules naming codes the
// company does not have, or accounts that are not postable or do not fit
// the transaction's direction, are skipped.
func (s *Suggester) Suggest(ctx context.Context, txn model.Transaction, chart *model.ChartOfAccounts) (model.Candidates, error) {
	rules, err := s.matcher.Match(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to match keywords: %w", err)
	}

	var candidates model.Candidates
	seen := make(map[int64]bool)

	for _, rule := range rules {
		account, ok := chart.ByCode(rule.AccountCode)
		if !ok || !account.Postable() || seen[account.ID] {
			continue
		}
		if s.validator != nil {
			if err := s.validator.ValidateDirection(ctx, txn, *account); err != nil {
				continue
			}
		}
		seen[account.ID] = true

		candidates = append(candidates, model.Candidate{
			AccountID:   account.ID,
			AccountCode: account.Code,
			AccountName: account.Name,
			Confidence:  KeywordConfidence,
			Source:      model.StrategyKeyword,
			Reason:      fmt.Sprintf("Keyword match: %q", rule.Keyword),
		})
	}

	return candidates, nil
}
