package server

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
)

const dateLayout = "2006-01-02"

// TransactionInput is the candidate shape handed over by document ingestion.
type TransactionInput struct {
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
	Vendor      string           `json:"vendor,omitempty"`
	Date        string           `json:"date,omitempty"`
}

func (in TransactionInput) candidate() (model.TransactionCandidate, error) {
	if in.Description == "" {
		return model.TransactionCandidate{}, common.InvalidInput("description is required")
	}
	if in.Amount == nil {
		return model.TransactionCandidate{}, common.InvalidInput("amount is required")
	}
	candidate := model.TransactionCandidate{
		Description: in.Description,
		Vendor:      in.Vendor,
		Amount:      *in.Amount,
	}
	if in.Date != "" {
		date, err := time.Parse(dateLayout, in.Date)
		if err != nil {
			return model.TransactionCandidate{}, common.InvalidInput("date %q must be YYYY-MM-DD", in.Date)
		}
		candidate.Date = date
	}
	return candidate, nil
}

// SimilarInput is the request body for POST .../similar.
type SimilarInput struct {
	TransactionInput
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
}

// SimilarResponse is the response body for POST .../similar.
type SimilarResponse struct {
	Similar []retrieval.Match `json:"similar_transactions"`
}

// FeedbackInput is the request body for POST .../feedback.
type FeedbackInput struct {
	ID                 string  `json:"id,omitempty"`
	TransactionID      string  `json:"transaction_id"`
	Reason             string  `json:"reason,omitempty"`
	UserID             string  `json:"user_id,omitempty"`
	PredictedAccountID int64   `json:"predicted_account_id"`
	CorrectAccountID   int64   `json:"correct_account_id"`
	Confidence         float64 `json:"predicted_confidence"`
}

// FeedbackResponse is the response body for POST .../feedback.
type FeedbackResponse struct {
	FeedbackID string             `json:"feedback_id"`
	Kind       model.FeedbackKind `json:"kind"`
	Confidence float64            `json:"confidence"`
	Duplicate  bool               `json:"duplicate"`
	Degraded   bool               `json:"degraded"`
}

// LowConfidenceResponse is the response body for GET .../low-confidence.
type LowConfidenceResponse struct {
	Transactions []model.ReviewItem `json:"transactions"`
	Threshold    float64            `json:"threshold"`
}

// EmbeddingsInput is the request body for POST .../embeddings.
type EmbeddingsInput struct {
	Limit int `json:"limit"`
}

// EmbeddingsResponse is the response body for POST .../embeddings.
type EmbeddingsResponse struct {
	Generated int   `json:"embeddings_generated"`
	Skipped   int   `json:"skipped"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// RetrainedInput is the request body for POST .../retraining.
type RetrainedInput struct {
	Note string `json:"note,omitempty"`
}

// RetrainedResponse is the response body for POST .../retraining.
type RetrainedResponse struct {
	RetrainedAt time.Time `json:"retrained_at"`
}

// SeedResponse is the response body for POST .../accounts/seed.
type SeedResponse struct {
	Created int `json:"created"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
