package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/service"
)

const feedbackColumns = `id, company_id, transaction_id, predicted_account_id, correct_account_id,
	confidence, kind, reason, user_id, created_at`

// RecordFeedback appends a feedback entry, increments the day's metrics,
// marks the transaction reviewed and stores its new embedding in a single
// database transaction. Write conflicts are retried; a retried call whose
// entry ID was already committed returns the stored entry as a duplicate.
func (s *SQLiteStorage) RecordFeedback(ctx context.Context, write service.FeedbackWrite) (*model.FeedbackOutcome, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFeedback(write.Entry); err != nil {
		return nil, err
	}
	if write.CallerConfidence < 0 || write.CallerConfidence > 1 {
		return nil, invalid(ErrInvalidFeedback, "confidence must be between 0 and 1")
	}
	if write.Embedding != nil {
		if err := write.Embedding.Validate(); err != nil {
			return nil, invalid(ErrInvalidFeedback, err.Error())
		}
	}

	var outcome *model.FeedbackOutcome
	err := common.WithRetry(ctx, func() error {
		var err error
		outcome, err = s.recordFeedbackOnce(ctx, write)
		return err
	}, s.retry)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *SQLiteStorage) recordFeedbackOnce(ctx context.Context, write service.FeedbackWrite) (*model.FeedbackOutcome, error) {
	entry := *write.Entry
	outcome := &model.FeedbackOutcome{Degraded: write.Embedding == nil}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getFeedbackTx(ctx, tx, entry.CompanyID, entry.ID)
		if err == nil {
			outcome.Entry = existing
			outcome.Duplicate = true
			return nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		txn, err := s.getTransactionTx(ctx, tx, entry.CompanyID, entry.TransactionID)
		if err != nil {
			return err
		}
		if _, err := s.getAccountTx(ctx, tx, entry.CompanyID, entry.PredictedAccountID); err != nil {
			return err
		}
		correct, err := s.getAccountTx(ctx, tx, entry.CompanyID, entry.CorrectAccountID)
		if err != nil {
			return err
		}
		if !correct.Postable() {
			return invalid(ErrInvalidFeedback, fmt.Sprintf("account %s cannot be posted to", correct.Code))
		}

		entry.Confidence = write.CallerConfidence
		if txn.Prediction != nil {
			entry.Confidence = txn.Prediction.Confidence
		}
		entry.Kind = model.FeedbackConfirmation
		status := model.StatusConfirmed
		if !entry.IsCorrect() {
			entry.Kind = model.FeedbackCorrection
			status = model.StatusCorrected
		}
		entry.CreatedAt = entry.CreatedAt.UTC()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO feedback (`+feedbackColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.CompanyID, entry.TransactionID, entry.PredictedAccountID,
			entry.CorrectAccountID, entry.Confidence, string(entry.Kind), entry.Reason,
			entry.UserID, entry.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert feedback: %w", classifySQLiteError(err))
		}

		if err := s.incrementMetricsTx(ctx, tx, entry.CompanyID, entry.CreatedAt, entry.IsCorrect(), entry.Confidence); err != nil {
			return err
		}

		if err := s.markReviewedTx(ctx, tx, &entry, status, write.Embedding); err != nil {
			return err
		}

		outcome.Entry = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *SQLiteStorage) markReviewedTx(ctx context.Context, tx *sql.Tx, entry *model.FeedbackEntry, status model.ClassificationStatus, vec model.Vector) error {
	now := time.Now().UTC()
	var err error
	if vec != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET status = ?, account_id = ?, embedding = ?, embedding_stale = 0,
				embedded_at = ?, updated_at = ?
			WHERE company_id = ? AND id = ?`,
			string(status), entry.CorrectAccountID, encodeVector(vec), now, now,
			entry.CompanyID, entry.TransactionID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET status = ?, account_id = ?, embedding_stale = 1, updated_at = ?
			WHERE company_id = ? AND id = ?`,
			string(status), entry.CorrectAccountID, now, entry.CompanyID, entry.TransactionID)
	}
	if err != nil {
		return fmt.Errorf("failed to update reviewed transaction: %w", classifySQLiteError(err))
	}
	return nil
}

func (s *SQLiteStorage) getFeedbackTx(ctx context.Context, q queryable, companyID, id string) (*model.FeedbackEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback WHERE company_id = ? AND id = ?`, companyID, id)
	entry, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("feedback %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", classifySQLiteError(err))
	}
	return entry, nil
}

// ListFeedback returns the company's feedback entries created at or after since.
func (s *SQLiteStorage) ListFeedback(ctx context.Context, companyID string, since time.Time) ([]model.FeedbackEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+feedbackColumns+` FROM feedback
		WHERE company_id = ? AND created_at >= ?
		ORDER BY created_at, id`, companyID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.FeedbackEntry
	for rows.Next() {
		entry, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// CountCorrectionsSince counts CORRECTION entries created at or after since.
func (s *SQLiteStorage) CountCorrectionsSince(ctx context.Context, companyID string, since time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM feedback
		WHERE company_id = ? AND kind = 'CORRECTION' AND created_at >= ?`,
		companyID, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count corrections: %w", err)
	}
	return n, nil
}

func scanFeedback(row rowScanner) (*model.FeedbackEntry, error) {
	var (
		e    model.FeedbackEntry
		kind string
	)
	if err := row.Scan(&e.ID, &e.CompanyID, &e.TransactionID, &e.PredictedAccountID,
		&e.CorrectAccountID, &e.Confidence, &kind, &e.Reason, &e.UserID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = model.FeedbackKind(kind)
	return &e, nil
}
