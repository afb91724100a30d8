package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/storage"
)

// MaxTrendDays bounds the trend and summary windows.
const MaxTrendDays = 365

// AdvisorConfig holds the retraining heuristics.
type AdvisorConfig struct {
	WindowDays              int
	MinSamples              int
	CorrectionRate          float64
	CorrectionsSinceRetrain int
	MinAccuracy             float64
}

// DefaultAdvisorConfig returns the default retraining heuristics.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		WindowDays:              7,
		MinSamples:              10,
		CorrectionRate:          0.30,
		CorrectionsSinceRetrain: 50,
		MinAccuracy:             0.70,
	}
}

// Validate checks the heuristics are usable.
func (c AdvisorConfig) Validate() error {
	if c.WindowDays <= 0 || c.WindowDays > MaxTrendDays {
		return fmt.Errorf("window_days must be between 1 and %d", MaxTrendDays)
	}
	if c.MinSamples < 0 || c.CorrectionsSinceRetrain <= 0 {
		return fmt.Errorf("min_samples must not be negative and corrections_since_retrain must be positive")
	}
	if c.CorrectionRate <= 0 || c.CorrectionRate > 1 || c.MinAccuracy < 0 || c.MinAccuracy > 1 {
		return fmt.Errorf("correction_rate and min_accuracy must be between 0 and 1")
	}
	return nil
}

// Report bundles the metrics returned for a company.
type Report struct {
	Summary    *model.FeedbackSummary  `json:"summary"`
	Retraining *model.RetrainingAdvice `json:"retraining_recommendation"`
	Trend      []model.TrendPoint      `json:"trend"`
}

// Analyzer derives trends, summaries and retraining advice from the daily
// metrics rollup.
type Analyzer struct {
	store  AnalyzerStore
	config AdvisorConfig
	now    func() time.Time
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(store AnalyzerStore, config AdvisorConfig) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return &Analyzer{store: store, config: config, now: time.Now}, nil
}

// SetClock replaces the time source that anchors the windows.
func (a *Analyzer) SetClock(now func() time.Time) {
	a.now = now
}

// Report returns the trend and summary over days plus retraining advice.
func (a *Analyzer) Report(ctx context.Context, companyID string, days int) (*Report, error) {
	rows, from, err := a.window(ctx, companyID, days)
	if err != nil {
		return nil, err
	}
	advice, err := a.SuggestRetraining(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &Report{
		Trend:      fillTrend(rows, from, days),
		Summary:    summarize(rows, days),
		Retraining: advice,
	}, nil
}

// Trend returns one point per UTC day for the last days days, oldest first.
// Days without predictions have a nil accuracy.
func (a *Analyzer) Trend(ctx context.Context, companyID string, days int) ([]model.TrendPoint, error) {
	rows, from, err := a.window(ctx, companyID, days)
	if err != nil {
		return nil, err
	}
	return fillTrend(rows, from, days), nil
}

// Summary totals the last days days of feedback.
func (a *Analyzer) Summary(ctx context.Context, companyID string, days int) (*model.FeedbackSummary, error) {
	rows, _, err := a.window(ctx, companyID, days)
	if err != nil {
		return nil, err
	}
	return summarize(rows, days), nil
}

// SuggestRetraining evaluates the heuristics over the trailing window and
// explains the decision.
func (a *Analyzer) SuggestRetraining(ctx context.Context, companyID string) (*model.RetrainingAdvice, error) {
	rows, _, err := a.window(ctx, companyID, a.config.WindowDays)
	if err != nil {
		return nil, err
	}
	last, err := a.store.LastRetraining(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading last retraining: %w", err)
	}
	var since time.Time
	if last != nil {
		since = *last
	}
	corrections, err := a.store.CountCorrectionsSince(ctx, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("counting corrections: %w", err)
	}

	summary := summarize(rows, a.config.WindowDays)
	advice := &model.RetrainingAdvice{
		LastRetrainedAt:         last,
		SampleSize:              summary.Total,
		CorrectionsSinceRetrain: corrections,
		CorrectionRate:          summary.CorrectionRate,
		Accuracy:                summary.Accuracy,
		Reasons:                 []string{},
	}

	enough := summary.Total > 0 && summary.Total >= a.config.MinSamples
	if enough {
		if rate := *summary.CorrectionRate; rate >= a.config.CorrectionRate {
			advice.Reasons = append(advice.Reasons, fmt.Sprintf(
				"Correction rate %.1f%% over the last %d days meets the %.0f%% threshold",
				rate*100, a.config.WindowDays, a.config.CorrectionRate*100))
		}
		if acc := *summary.Accuracy; acc < a.config.MinAccuracy {
			advice.Reasons = append(advice.Reasons, fmt.Sprintf(
				"Accuracy %.1f%% over the last %d days is below the %.0f%% minimum",
				acc*100, a.config.WindowDays, a.config.MinAccuracy*100))
		}
	}
	if corrections >= a.config.CorrectionsSinceRetrain {
		advice.Reasons = append(advice.Reasons, fmt.Sprintf(
			"%d corrections since the last retraining (threshold %d)",
			corrections, a.config.CorrectionsSinceRetrain))
	}

	advice.ShouldRetrain = len(advice.Reasons) > 0
	switch {
	case advice.ShouldRetrain:
	case !enough:
		advice.Reasons = append(advice.Reasons, fmt.Sprintf(
			"Insufficient data: %d predictions in the last %d days (minimum %d)",
			summary.Total, a.config.WindowDays, a.config.MinSamples))
	default:
		advice.Reasons = append(advice.Reasons, "Correction rate and accuracy are within thresholds")
	}

	common.LogDebug(common.WithCompany(ctx, companyID), "Retraining evaluated", common.Fields{
		"should_retrain": advice.ShouldRetrain,
		"sample_size":    advice.SampleSize,
	})
	return advice, nil
}

// MarkRetrained records that the company's model was retrained now.
func (a *Analyzer) MarkRetrained(ctx context.Context, companyID, note string) (time.Time, error) {
	if !storage.ValidCompanyID(companyID) {
		return time.Time{}, common.InvalidInput("malformed company id %q", companyID)
	}
	at := a.now().UTC()
	if err := a.store.RecordRetraining(ctx, companyID, at, note); err != nil {
		return time.Time{}, err
	}
	common.LogInfo(common.WithCompany(ctx, companyID), "Retraining recorded", common.Fields{"note": note})
	return at, nil
}

func (a *Analyzer) window(ctx context.Context, companyID string, days int) ([]model.PredictionMetrics, time.Time, error) {
	if !storage.ValidCompanyID(companyID) {
		return nil, time.Time{}, common.InvalidInput("malformed company id %q", companyID)
	}
	if days <= 0 || days > MaxTrendDays {
		return nil, time.Time{}, common.InvalidInput("days must be between 1 and %d", MaxTrendDays)
	}
	to := day(a.now())
	from := to.AddDate(0, 0, -(days - 1))
	rows, err := a.store.GetMetrics(ctx, companyID, from, to)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading metrics: %w", err)
	}
	return rows, from, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fillTrend(rows []model.PredictionMetrics, from time.Time, days int) []model.TrendPoint {
	byDay := make(map[time.Time]model.PredictionMetrics, len(rows))
	for _, row := range rows {
		byDay[day(row.Date)] = row
	}

	points := make([]model.TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i)
		point := model.TrendPoint{Date: date}
		if row, ok := byDay[date]; ok {
			point.Total = row.TotalPredictions
			point.Correct = row.CorrectPredictions
			point.Accuracy = row.Accuracy()
			point.AverageConfidence = row.AverageConfidence()
		}
		points = append(points, point)
	}
	return points
}

func summarize(rows []model.PredictionMetrics, days int) *model.FeedbackSummary {
	var (
		total    model.PredictionMetrics
		s        = &model.FeedbackSummary{PeriodDays: days}
		fraction = func(n int) *float64 {
			v := float64(n) / float64(total.TotalPredictions)
			return &v
		}
	)
	for _, row := range rows {
		total.TotalPredictions += row.TotalPredictions
		total.CorrectPredictions += row.CorrectPredictions
		total.IncorrectPredictions += row.IncorrectPredictions
		total.ConfidenceSum += row.ConfidenceSum
		s.Breakdown.HighCorrect += row.HighConfidenceCorrect
		s.Breakdown.HighIncorrect += row.HighConfidenceIncorrect
		s.Breakdown.LowCorrect += row.LowConfidenceCorrect
		s.Breakdown.LowIncorrect += row.LowConfidenceIncorrect
	}

	s.Total = total.TotalPredictions
	s.Confirmations = total.CorrectPredictions
	s.Corrections = total.IncorrectPredictions
	if s.Total > 0 {
		s.Accuracy = total.Accuracy()
		s.AverageConfidence = total.AverageConfidence()
		s.CorrectionRate = fraction(s.Corrections)
		s.ConfirmationRate = fraction(s.Confirmations)
	}
	return s
}
