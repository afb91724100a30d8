package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionDirection indicates whether money left or entered the company.
type TransactionDirection string

const (
	// DirectionOutflow is money leaving the company (negative amount).
	DirectionOutflow TransactionDirection = "outflow"
	// DirectionInflow is money entering the company (positive amount).
	DirectionInflow TransactionDirection = "inflow"
	// DirectionNone is a zero-amount transaction.
	DirectionNone TransactionDirection = "none"
)

// DirectionOf returns the direction implied by the sign of amount.
func DirectionOf(amount decimal.Decimal) TransactionDirection {
	switch amount.Sign() {
	case -1:
		return DirectionOutflow
	case 1:
		return DirectionInflow
	default:
		return DirectionNone
	}
}

// Transaction represents a single company-scoped financial transaction.
type Transaction struct {
	Date                  time.Time            `json:"date"`
	CreatedAt             time.Time            `json:"created_at"`
	Prediction            *Prediction          `json:"prediction,omitempty"`
	AssignedAccountID     *int64               `json:"assigned_account_id,omitempty"`
	ID                    string               `json:"id"`
	CompanyID             string               `json:"company_id"`
	Description           string               `json:"description"`
	NormalizedDescription string               `json:"-"`
	Counterparty          string               `json:"counterparty,omitempty"`
	Status                ClassificationStatus `json:"status"`
	Embedding             Vector               `json:"-"`
	Amount                decimal.Decimal      `json:"amount"`
	EmbeddingStale        bool                 `json:"embedding_stale"`
}

// Direction returns the direction implied by the transaction amount.
func (t *Transaction) Direction() TransactionDirection {
	return DirectionOf(t.Amount)
}

// HasEmbedding reports whether the transaction carries a current embedding.
func (t *Transaction) HasEmbedding() bool {
	return len(t.Embedding) > 0 && !t.EmbeddingStale
}

// IsReviewed reports whether a human confirmed or corrected the transaction.
func (t *Transaction) IsReviewed() bool {
	return t.Status == StatusConfirmed || t.Status == StatusCorrected
}

// TransactionCandidate is the shape handed over by document ingestion.
type TransactionCandidate struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// Prediction is the suggestion materialised on a transaction at classification time.
type Prediction struct {
	ClassifiedAt time.Time    `json:"classified_at"`
	Reason       string       `json:"reason"`
	Source       StrategyKind `json:"source"`
	Alternates   []Candidate  `json:"alternates"`
	AccountID    int64        `json:"account_id"`
	Confidence   float64      `json:"confidence"`
}
