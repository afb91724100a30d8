package pattern

import (
	"context"
	"fmt"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// Validator implements DirectionValidator.
type Validator struct{}

// NewValidator creates a new direction validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateDirection rejects revenue accounts for outflows and expense
// accounts for inflows. Balance-sheet accounts fit either direction.
func (v *Validator) ValidateDirection(_ context.Context, txn model.Transaction, account model.Account) error {
	switch txn.Direction() {
	case model.DirectionOutflow:
		if account.Type == model.AccountTypeRevenue {
			return fmt.Errorf("account %s is a revenue account but the transaction is an outflow", account.Code)
		}
	case model.DirectionInflow:
		if account.Type == model.AccountTypeExpense {
			return fmt.Errorf("account %s is an expense account but the transaction is an inflow", account.Code)
		}
	}
	return nil
}
