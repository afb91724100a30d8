// Package pattern matches transaction text against a configurable keyword
// table and turns hits into account candidates.
package pattern

import (
	"context"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// KeywordConfidence is the confidence of a keyword-table hit.
const KeywordConfidence = 0.70

// DirectionValidator checks that an account fits a transaction's direction.
type DirectionValidator interface {
	// ValidateDirection ensures the account type is consistent with the money flow.
	ValidateDirection(ctx context.Context, txn model.Transaction, account model.Account) error
}

// Matcher evaluates transactions against keyword rules.
type Matcher interface {
	// Match returns every rule whose keyword occurs in the transaction text.
	Match(ctx context.Context, txn model.Transaction) ([]Rule, error)
}

// Rule is an alias to the model.KeywordRule type for convenience.
type Rule = model.KeywordRule
