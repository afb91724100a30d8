package model

import "time"

// Confidence bands used by the metrics breakdown.
const (
	HighConfidenceThreshold = 0.8
	LowConfidenceThreshold  = 0.6
)

// PredictionMetrics aggregates feedback outcomes for one company and UTC day.
type PredictionMetrics struct {
	Date                    time.Time
	CompanyID               string
	TotalPredictions        int
	CorrectPredictions      int
	IncorrectPredictions    int
	HighConfidenceCorrect   int
	HighConfidenceIncorrect int
	LowConfidenceCorrect    int
	LowConfidenceIncorrect  int
	ConfidenceSum           float64
}

// Accuracy returns correct/total, or nil when there were no predictions.
func (m *PredictionMetrics) Accuracy() *float64 {
	if m.TotalPredictions == 0 {
		return nil
	}
	v := float64(m.CorrectPredictions) / float64(m.TotalPredictions)
	return &v
}

// AverageConfidence returns the mean predicted confidence, or nil when empty.
func (m *PredictionMetrics) AverageConfidence() *float64 {
	if m.TotalPredictions == 0 {
		return nil
	}
	v := m.ConfidenceSum / float64(m.TotalPredictions)
	return &v
}

// TrendPoint is one day of an accuracy trend.
type TrendPoint struct {
	Date              time.Time `json:"date"`
	Accuracy          *float64  `json:"accuracy"`
	AverageConfidence *float64  `json:"average_confidence"`
	Total             int       `json:"total"`
	Correct           int       `json:"correct"`
}

// ConfidenceBreakdown counts outcomes in the high and low confidence bands.
type ConfidenceBreakdown struct {
	HighCorrect   int `json:"high_confidence_correct"`
	HighIncorrect int `json:"high_confidence_incorrect"`
	LowCorrect    int `json:"low_confidence_correct"`
	LowIncorrect  int `json:"low_confidence_incorrect"`
}

// FeedbackSummary summarises feedback over a window.
type FeedbackSummary struct {
	Breakdown         ConfidenceBreakdown `json:"confidence_breakdown"`
	PeriodDays        int                 `json:"period_days"`
	Total             int                 `json:"total"`
	Corrections       int                 `json:"corrections"`
	Confirmations     int                 `json:"confirmations"`
	Accuracy          *float64            `json:"accuracy"`
	CorrectionRate    *float64            `json:"correction_rate"`
	ConfirmationRate  *float64            `json:"confirmation_rate"`
	AverageConfidence *float64            `json:"average_confidence"`
}

// RetrainingAdvice is the result of the retraining check.
type RetrainingAdvice struct {
	LastRetrainedAt         *time.Time `json:"last_retrained_at,omitempty"`
	Reasons                 []string   `json:"reasons"`
	CorrectionRate          *float64   `json:"correction_rate"`
	Accuracy                *float64   `json:"accuracy"`
	SampleSize              int        `json:"sample_size"`
	CorrectionsSinceRetrain int        `json:"corrections_since_retrain"`
	ShouldRetrain           bool       `json:"should_retrain"`
}

// EmbeddingStats describes embedding coverage for a company.
type EmbeddingStats struct {
	Total   int `json:"total"`
	Current int `json:"current"`
	Stale   int `json:"stale"`
	Missing int `json:"missing"`
}
