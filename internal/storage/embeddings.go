package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// encodeVector packs v as little-endian float32s.
func encodeVector(v model.Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a stored embedding, rejecting blobs of the wrong size.
func decodeVector(b []byte) (model.Vector, error) {
	if len(b) != 4*model.EmbeddingDimension {
		return nil, fmt.Errorf("stored embedding has %d bytes, want %d", len(b), 4*model.EmbeddingDimension)
	}
	v := make(model.Vector, model.EmbeddingDimension)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// ListNeedingEmbedding returns transactions whose embedding is missing or
// stale, oldest first, skipping the given IDs.
func (s *SQLiteStorage) ListNeedingEmbedding(ctx context.Context, companyID string, limit int, exclude []string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCompany(companyID); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE company_id = ? AND (embedding IS NULL OR embedding_stale = 1)`
	args := []any{companyID}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(exclude)) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	args = append(args, limitOrAll(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending embeddings: %w", err)
	}
	return scanTransactions(rows)
}

// SetEmbedding stores vec on a transaction whose embedding is missing or
// stale. It reports false when another writer already stored a current one.
func (s *SQLiteStorage) SetEmbedding(ctx context.Context, companyID, id string, vec model.Vector) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := vec.Validate(); err != nil {
		return false, invalid(ErrInvalidTransaction, err.Error())
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET embedding = ?, embedding_stale = 0, embedded_at = ?, updated_at = ?
		WHERE company_id = ? AND id = ? AND (embedding IS NULL OR embedding_stale = 1)`,
		encodeVector(vec), now, now, companyID, id)
	if err != nil {
		return false, fmt.Errorf("failed to store embedding: %w", classifySQLiteError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check embedding update: %w", err)
	}
	return n > 0, nil
}

// EmbeddingStats returns embedding coverage for a company.
func (s *SQLiteStorage) EmbeddingStats(ctx context.Context, companyID string) (*model.EmbeddingStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	var stats model.EmbeddingStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN embedding IS NOT NULL AND embedding_stale = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN embedding IS NOT NULL AND embedding_stale = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN embedding IS NULL THEN 1 ELSE 0 END), 0)
		FROM transactions WHERE company_id = ?`, companyID,
	).Scan(&stats.Total, &stats.Current, &stats.Stale, &stats.Missing)
	if err != nil {
		return nil, fmt.Errorf("failed to compute embedding stats: %w", err)
	}
	return &stats, nil
}
