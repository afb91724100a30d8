package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
)

const transactionColumns = `id, company_id, date, description, normalized_description, counterparty, amount,
	status, suggested_account_id, confidence, prediction_reason, prediction_source, alternates, classified_at,
	account_id, embedding, embedding_stale, created_at`

// CreateTransaction inserts a transaction.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if txn != nil {
		if txn.Status == "" {
			txn.Status = model.StatusUnclassified
		}
		if txn.NormalizedDescription == "" {
			txn.NormalizedDescription = model.Normalize(txn.Description)
		}
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.createTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) createTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) error {
	now := time.Now().UTC()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}

	var embedding []byte
	var embeddedAt sql.NullTime
	if len(txn.Embedding) > 0 {
		embedding = encodeVector(txn.Embedding)
		embeddedAt = sql.NullTime{Time: now, Valid: true}
	}

	var accountID sql.NullInt64
	if txn.AssignedAccountID != nil {
		accountID = sql.NullInt64{Int64: *txn.AssignedAccountID, Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			id, company_id, date, description, normalized_description, counterparty, amount,
			status, account_id, embedding, embedding_stale, embedded_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.CompanyID, txn.Date.UTC(), txn.Description, txn.NormalizedDescription,
		txn.Counterparty, txn.Amount.String(), string(txn.Status), accountID,
		embedding, txn.EmbeddingStale, embeddedAt, txn.CreatedAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", classifySQLiteError(err))
	}

	if txn.Prediction != nil {
		if _, err := s.savePredictionTx(ctx, q, txn.CompanyID, txn.ID, txn.Prediction, true); err != nil {
			return err
		}
	}
	return nil
}

// GetTransaction returns a company's transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, companyID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionTx(ctx, s.db, companyID, id)
}

func (s *SQLiteStorage) getTransactionTx(ctx context.Context, q queryable, companyID, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE company_id = ? AND id = ?`, companyID, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("transaction %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactionsByIDs returns the company's transactions among ids, keyed by ID.
// IDs belonging to other companies are silently absent from the result.
func (s *SQLiteStorage) GetTransactionsByIDs(ctx context.Context, companyID string, ids []string) (map[string]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	result := make(map[string]model.Transaction, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, companyID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE company_id = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	for _, txn := range txns {
		result[txn.ID] = txn
	}
	return result, nil
}

// FindReviewedByDescription returns confirmed or corrected transactions whose
// normalized description equals normalized, most recent first.
func (s *SQLiteStorage) FindReviewedByDescription(ctx context.Context, companyID, normalized string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE company_id = ? AND normalized_description = ?
			AND status IN ('CONFIRMED', 'CORRECTED') AND account_id IS NOT NULL
		ORDER BY date DESC, id
		LIMIT ?`, companyID, normalized, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query reviewed transactions: %w", err)
	}
	return scanTransactions(rows)
}

// ListReviewedWithEmbedding returns reviewed transactions with a current embedding.
func (s *SQLiteStorage) ListReviewedWithEmbedding(ctx context.Context, companyID string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE company_id = ? AND status IN ('CONFIRMED', 'CORRECTED') AND account_id IS NOT NULL
			AND embedding IS NOT NULL AND embedding_stale = 0
		ORDER BY date DESC, id
		LIMIT ?`, companyID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query indexed transactions: %w", err)
	}
	return scanTransactions(rows)
}

// SavePrediction materialises a suggestion on an unreviewed transaction. It
// reports false without error when the transaction was already reviewed.
func (s *SQLiteStorage) SavePrediction(ctx context.Context, companyID, id string, prediction *model.Prediction) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if prediction == nil {
		return false, fmt.Errorf("%w: prediction", ErrNilParameter)
	}
	if prediction.Confidence < 0 || prediction.Confidence > 1 {
		return false, invalid(ErrInvalidTransaction, "confidence must be between 0 and 1")
	}
	return s.savePredictionTx(ctx, s.db, companyID, id, prediction, false)
}

func (s *SQLiteStorage) savePredictionTx(ctx context.Context, q queryable, companyID, id string, p *model.Prediction, keepStatus bool) (bool, error) {
	alternates, err := json.Marshal(p.Alternates)
	if err != nil {
		return false, fmt.Errorf("failed to encode alternates: %w", err)
	}
	if p.ClassifiedAt.IsZero() {
		p.ClassifiedAt = time.Now().UTC()
	}

	status := `'SUGGESTED'`
	if keepStatus {
		status = `status`
	}

	result, err := q.ExecContext(ctx, `
		UPDATE transactions SET
			status = `+status+`,
			suggested_account_id = ?, confidence = ?, prediction_reason = ?,
			prediction_source = ?, alternates = ?, classified_at = ?, updated_at = ?
		WHERE company_id = ? AND id = ?
			AND (? OR status IN ('UNCLASSIFIED', 'SUGGESTED'))`,
		p.AccountID, p.Confidence, p.Reason, string(p.Source), string(alternates),
		p.ClassifiedAt, time.Now().UTC(), companyID, id, keepStatus,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save prediction: %w", classifySQLiteError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check prediction update: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM transactions WHERE company_id = ? AND id = ?)`,
			companyID, id).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check transaction: %w", err)
		}
		if !exists {
			return false, common.NotFound("transaction %s", id)
		}
	}
	return n > 0, nil
}

// LowConfidence returns unreviewed suggestions with a confidence in
// (0, threshold) that have no feedback, most uncertain first.
func (s *SQLiteStorage) LowConfidence(ctx context.Context, companyID string, threshold float64, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCompany(companyID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("t", transactionColumns)+` FROM transactions t
		WHERE t.company_id = ? AND t.status = 'SUGGESTED'
			AND t.confidence IS NOT NULL AND t.confidence > 0 AND t.confidence < ?
			AND NOT EXISTS (SELECT 1 FROM feedback f WHERE f.transaction_id = t.id)
		ORDER BY t.confidence ASC, t.date DESC, t.id
		LIMIT ?`, companyID, threshold, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query low confidence transactions: %w", err)
	}
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn          model.Transaction
		status       string
		suggestedID  sql.NullInt64
		confidence   sql.NullFloat64
		reason       sql.NullString
		source       sql.NullString
		alternates   sql.NullString
		classifiedAt sql.NullTime
		accountID    sql.NullInt64
		embedding    []byte
	)
	err := row.Scan(&txn.ID, &txn.CompanyID, &txn.Date, &txn.Description, &txn.NormalizedDescription,
		&txn.Counterparty, &txn.Amount, &status, &suggestedID, &confidence, &reason, &source,
		&alternates, &classifiedAt, &accountID, &embedding, &txn.EmbeddingStale, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}

	txn.Status = model.ClassificationStatus(status)
	if accountID.Valid {
		id := accountID.Int64
		txn.AssignedAccountID = &id
	}
	if suggestedID.Valid && confidence.Valid {
		txn.Prediction = &model.Prediction{
			AccountID:    suggestedID.Int64,
			Confidence:   confidence.Float64,
			Reason:       reason.String,
			Source:       model.StrategyKind(source.String),
			ClassifiedAt: classifiedAt.Time,
		}
		if alternates.Valid && alternates.String != "" {
			if err := json.Unmarshal([]byte(alternates.String), &txn.Prediction.Alternates); err != nil {
				return nil, fmt.Errorf("failed to decode alternates: %w", err)
			}
		}
	}
	if len(embedding) > 0 {
		vec, err := decodeVector(embedding)
		if err != nil {
			return nil, err
		}
		txn.Embedding = vec
	}
	return &txn, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
