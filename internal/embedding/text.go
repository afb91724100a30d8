// Package embedding turns transaction text into fixed-length vectors.
package embedding

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// BuildText renders the deterministic embedding input for a transaction.
func BuildText(description, counterparty string, amount decimal.Decimal) string {
	parts := []string{"description: " + model.Normalize(description)}
	if cp := model.Normalize(counterparty); cp != "" {
		parts = append(parts, "counterparty: "+cp)
	}
	parts = append(parts, "direction: "+string(model.DirectionOf(amount)))
	return strings.Join(parts, " | ")
}

// TransactionText renders the embedding input for a stored transaction.
func TransactionText(txn *model.Transaction) string {
	return BuildText(txn.Description, txn.Counterparty, txn.Amount)
}
