package feedback

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/service"
	"github.com/Veraticus/coa-classifier/internal/storage"
	"github.com/Veraticus/coa-classifier/internal/telemetry"
)

// Request describes one human review of a transaction's prediction.
type Request struct {
	// ID makes the call idempotent when set; a retried request with the
	// same ID returns the stored entry instead of counting twice.
	ID                 string  `json:"id,omitempty"`
	CompanyID          string  `json:"company_id"`
	TransactionID      string  `json:"transaction_id"`
	Reason             string  `json:"reason,omitempty"`
	UserID             string  `json:"user_id,omitempty"`
	PredictedAccountID int64   `json:"predicted_account_id"`
	CorrectAccountID   int64   `json:"correct_account_id"`
	Confidence         float64 `json:"confidence"`
}

// Validate rejects malformed requests before anything is read or written.
func (r Request) Validate() error {
	if !storage.ValidCompanyID(r.CompanyID) {
		return common.InvalidInput("malformed company id %q", r.CompanyID)
	}
	if strings.TrimSpace(r.TransactionID) == "" {
		return common.InvalidInput("transaction id is required")
	}
	if r.PredictedAccountID <= 0 || r.CorrectAccountID <= 0 {
		return common.InvalidInput("predicted and correct account ids are required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return common.InvalidInput("confidence %.3f must be between 0 and 1", r.Confidence)
	}
	if r.ID != "" {
		if _, err := uuid.Parse(r.ID); err != nil {
			return common.InvalidInput("feedback id %q is not a UUID", r.ID)
		}
	}
	return nil
}

// Recorder appends feedback entries and keeps the similarity index in step
// with the reviewed transactions.
type Recorder struct {
	store    RecorderStore
	embedder Embedder
	index    Indexer
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewRecorder creates a recorder. index may be nil.
func NewRecorder(store RecorderStore, embedder Embedder, index Indexer, metrics *telemetry.Metrics) *Recorder {
	return &Recorder{
		store:    store,
		embedder: embedder,
		index:    index,
		metrics:  metrics,
		now:      time.Now,
	}
}

// SetClock replaces the time source used to stamp entries.
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

// Record writes one feedback entry. The entry, the day's metrics increment
// and the transaction's new status and embedding commit together. The
// embedding is computed before that commit; when the model is unavailable
// the transaction is marked stale and the outcome reports Degraded.
func (r *Recorder) Record(ctx context.Context, req Request) (*model.FeedbackOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx = common.WithCompany(ctx, req.CompanyID)

	txn, err := r.store.GetTransaction(ctx, req.CompanyID, req.TransactionID)
	if err != nil {
		return nil, err
	}

	vec, err := r.embedder.EmbedTransaction(ctx, txn)
	if err != nil {
		if !errors.Is(err, common.ErrModelUnavailable) {
			return nil, err
		}
		common.LogError(ctx, err, "Embedding unavailable; transaction will be re-embedded later", common.Fields{
			"transaction_id": txn.ID,
		})
		vec = nil
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	entry := &model.FeedbackEntry{
		ID:                 id,
		CompanyID:          req.CompanyID,
		TransactionID:      req.TransactionID,
		PredictedAccountID: req.PredictedAccountID,
		CorrectAccountID:   req.CorrectAccountID,
		Reason:             req.Reason,
		UserID:             req.UserID,
		CreatedAt:          r.now(),
	}

	outcome, err := r.store.RecordFeedback(ctx, service.FeedbackWrite{
		Entry:            entry,
		Embedding:        vec,
		CallerConfidence: req.Confidence,
	})
	if err != nil {
		return nil, err
	}
	if outcome.Duplicate {
		common.LogDebug(ctx, "Feedback already recorded", common.Fields{"feedback_id": id})
		return outcome, nil
	}

	r.metrics.Feedback(string(outcome.Entry.Kind))
	if vec != nil {
		r.reindex(ctx, *txn, outcome.Entry, vec)
	}

	common.LogInfo(ctx, "Feedback recorded", common.Fields{
		"transaction_id": txn.ID,
		"feedback_id":    outcome.Entry.ID,
		"kind":           string(outcome.Entry.Kind),
	})
	return outcome, nil
}

func (r *Recorder) reindex(ctx context.Context, txn model.Transaction, entry *model.FeedbackEntry, vec model.Vector) {
	if r.index == nil {
		return
	}
	account := entry.CorrectAccountID
	txn.AssignedAccountID = &account
	txn.Status = model.StatusConfirmed
	if entry.Kind == model.FeedbackCorrection {
		txn.Status = model.StatusCorrected
	}
	txn.Embedding = vec
	txn.EmbeddingStale = false

	if err := r.index.Upsert(ctx, txn, vec); err != nil {
		common.LogError(ctx, err, "Failed to index reviewed transaction", common.Fields{
			"transaction_id": txn.ID,
		})
	}
}
