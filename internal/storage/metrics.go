package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/coa-classifier/internal/model"
)

const metricsDateLayout = "2006-01-02"

// incrementMetricsTx atomically adds one prediction outcome to the
// (company, UTC day) row, creating it on first use.
func (s *SQLiteStorage) incrementMetricsTx(ctx context.Context, tx *sql.Tx, companyID string, at time.Time, correct bool, confidence float64) error {
	var c, ic, hc, hi, lc, li int
	if correct {
		c = 1
	} else {
		ic = 1
	}
	switch {
	case confidence > model.HighConfidenceThreshold:
		hc, hi = c, ic
	case confidence < model.LowConfidenceThreshold:
		lc, li = c, ic
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO prediction_metrics (
			company_id, date, total, correct, incorrect,
			high_conf_correct, high_conf_incorrect, low_conf_correct, low_conf_incorrect,
			confidence_sum, updated_at
		) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, date) DO UPDATE SET
			total = total + 1,
			correct = correct + excluded.correct,
			incorrect = incorrect + excluded.incorrect,
			high_conf_correct = high_conf_correct + excluded.high_conf_correct,
			high_conf_incorrect = high_conf_incorrect + excluded.high_conf_incorrect,
			low_conf_correct = low_conf_correct + excluded.low_conf_correct,
			low_conf_incorrect = low_conf_incorrect + excluded.low_conf_incorrect,
			confidence_sum = confidence_sum + excluded.confidence_sum,
			updated_at = excluded.updated_at`,
		companyID, at.UTC().Format(metricsDateLayout), c, ic, hc, hi, lc, li, confidence, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to increment metrics: %w", classifySQLiteError(err))
	}
	return nil
}

// GetMetrics returns stored daily rows for the company between from and to
// inclusive, by UTC date. Days without feedback have no row.
func (s *SQLiteStorage) GetMetrics(ctx context.Context, companyID string, from, to time.Time) ([]model.PredictionMetrics, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, to, from)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id, date, total, correct, incorrect,
			high_conf_correct, high_conf_incorrect, low_conf_correct, low_conf_incorrect, confidence_sum
		FROM prediction_metrics
		WHERE company_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		companyID, from.UTC().Format(metricsDateLayout), to.UTC().Format(metricsDateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.PredictionMetrics
	for rows.Next() {
		var (
			m    model.PredictionMetrics
			date string
		)
		if err := rows.Scan(&m.CompanyID, &date, &m.TotalPredictions, &m.CorrectPredictions,
			&m.IncorrectPredictions, &m.HighConfidenceCorrect, &m.HighConfidenceIncorrect,
			&m.LowConfidenceCorrect, &m.LowConfidenceIncorrect, &m.ConfidenceSum); err != nil {
			return nil, fmt.Errorf("failed to scan metrics: %w", err)
		}
		m.Date, err = time.Parse(metricsDateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse metrics date %q: %w", date, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordRetraining stores a retraining event for the company.
func (s *SQLiteStorage) RecordRetraining(ctx context.Context, companyID string, at time.Time, note string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCompany(companyID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retraining_events (company_id, retrained_at, note) VALUES (?, ?, ?)`,
		companyID, at.UTC(), note)
	if err != nil {
		return fmt.Errorf("failed to record retraining: %w", classifySQLiteError(err))
	}
	return nil
}

// LastRetraining returns the most recent retraining time, or nil if none.
func (s *SQLiteStorage) LastRetraining(ctx context.Context, companyID string) (*time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	var at time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT retrained_at FROM retraining_events
		WHERE company_id = ? ORDER BY retrained_at DESC LIMIT 1`, companyID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last retraining: %w", err)
	}
	return &at, nil
}
