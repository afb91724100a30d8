package model

import "time"

// FeedbackKind distinguishes a confirmation from a correction.
type FeedbackKind string

// Feedback kinds.
const (
	FeedbackConfirmation FeedbackKind = "CONFIRMATION"
	FeedbackCorrection   FeedbackKind = "CORRECTION"
)

// FeedbackEntry is an immutable record of a human review of a prediction.
type FeedbackEntry struct {
	CreatedAt          time.Time    `json:"created_at"`
	ID                 string       `json:"id"`
	CompanyID          string       `json:"company_id"`
	TransactionID      string       `json:"transaction_id"`
	Kind               FeedbackKind `json:"kind"`
	Reason             string       `json:"reason,omitempty"`
	UserID             string       `json:"user_id,omitempty"`
	PredictedAccountID int64        `json:"predicted_account_id"`
	CorrectAccountID   int64        `json:"correct_account_id"`
	Confidence         float64      `json:"confidence"`
}

// IsCorrect reports whether the prediction was accepted.
func (f *FeedbackEntry) IsCorrect() bool {
	return f.PredictedAccountID == f.CorrectAccountID
}

// FeedbackOutcome is returned after recording feedback.
type FeedbackOutcome struct {
	Entry     *FeedbackEntry `json:"entry"`
	Duplicate bool           `json:"duplicate"`
	Degraded  bool           `json:"degraded"`
}

// ReviewItem is a low-confidence prediction awaiting human review.
type ReviewItem struct {
	Transaction Transaction    `json:"transaction"`
	Priority    ReviewPriority `json:"priority"`
	AccountCode string         `json:"account_code,omitempty"`
	AccountName string         `json:"account_name,omitempty"`
}

// ReviewPriority ranks review items.
type ReviewPriority string

// Review priorities.
const (
	PriorityHigh   ReviewPriority = "high"
	PriorityMedium ReviewPriority = "medium"
)
