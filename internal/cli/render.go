package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/feedback"
	"github.com/Veraticus/coa-classifier/internal/model"
	"github.com/Veraticus/coa-classifier/internal/retrieval"
)

// table renders rows as aligned columns under a bold header.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = TableHeaderStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	for _, row := range rows {
		b.WriteString("\n")
		for i, cell := range row {
			cells[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return b.String()
}

func percent(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *f*100)
}

func confidence(c float64) string {
	return ConfidenceStyle(c).Render(fmt.Sprintf("%.2f", c))
}

// RenderClassification renders the ranked suggestions and the history that
// supported them.
func RenderClassification(resp *classifier.ClassifyResponse) string {
	var b strings.Builder
	b.WriteString(FormatTitle("Suggested accounts"))
	b.WriteString("\n")

	if len(resp.Suggestions) == 0 {
		b.WriteString(FormatWarning("No account could be suggested"))
		return b.String()
	}

	rows := make([][]string, 0, len(resp.Suggestions))
	for _, c := range resp.Suggestions {
		rows = append(rows, []string{c.AccountCode, c.AccountName, confidence(c.Confidence), string(c.Source), c.Reason})
	}
	b.WriteString(table([]string{"Code", "Account", "Confidence", "Source", "Reason"}, rows))

	if len(resp.Similar) > 0 {
		b.WriteString("\n\n")
		b.WriteString(RenderSimilar(resp.Similar))
	}
	if resp.Degraded {
		b.WriteString("\n\n")
		b.WriteString(FormatWarning("Embedding model unavailable; similarity suggestions were limited"))
	}
	return b.String()
}

// RenderSimilar renders similarity matches.
func RenderSimilar(matches []retrieval.Match) string {
	if len(matches) == 0 {
		return FormatInfo("No similar reviewed transactions")
	}
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{
			fmt.Sprintf("%.3f", m.Similarity),
			m.Transaction.Date.Format("2006-01-02"),
			m.Transaction.Amount.StringFixed(2),
			m.Transaction.Description,
			fmt.Sprintf("%d", m.AccountID),
		})
	}
	return SubtleStyle.Render("Similar reviewed transactions") + "\n" +
		table([]string{"Similarity", "Date", "Amount", "Description", "Account"}, rows)
}

// RenderReviewQueue renders the low-confidence review queue.
func RenderReviewQueue(items []model.ReviewItem, threshold float64) string {
	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Transactions below %.2f confidence", threshold)))
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString(FormatSuccess("Nothing needs review"))
		return b.String()
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		txn := item.Transaction
		conf := "n/a"
		if txn.Prediction != nil {
			conf = confidence(txn.Prediction.Confidence)
		}
		priority := string(item.Priority)
		if item.Priority == model.PriorityHigh {
			priority = ErrorStyle.Render(priority)
		}
		rows = append(rows, []string{
			txn.ID,
			txn.Date.Format("2006-01-02"),
			txn.Amount.StringFixed(2),
			txn.Description,
			strings.TrimSpace(item.AccountCode + " " + item.AccountName),
			conf,
			priority,
		})
	}
	b.WriteString(table([]string{"ID", "Date", "Amount", "Description", "Suggested", "Confidence", "Priority"}, rows))
	return b.String()
}

// RenderReport renders the accuracy trend, summary and retraining advice.
func RenderReport(report *feedback.Report) string {
	var b strings.Builder
	s := report.Summary
	if s == nil {
		s = &model.FeedbackSummary{}
	}
	b.WriteString(FormatTitle(fmt.Sprintf("Accuracy over %d days", s.PeriodDays)))
	b.WriteString("\n")

	summary := fmt.Sprintf(
		"Feedback: %d (%d confirmations, %d corrections)\nAccuracy: %s\nCorrection rate: %s\nAverage confidence: %s\nHigh confidence: %d correct, %d incorrect\nLow confidence: %d correct, %d incorrect",
		s.Total, s.Confirmations, s.Corrections,
		percent(s.Accuracy), percent(s.CorrectionRate), percent(s.AverageConfidence),
		s.Breakdown.HighCorrect, s.Breakdown.HighIncorrect,
		s.Breakdown.LowCorrect, s.Breakdown.LowIncorrect)
	b.WriteString(RenderBox("Summary", summary))
	b.WriteString("\n\n")

	rows := make([][]string, 0, len(report.Trend))
	for _, p := range report.Trend {
		rows = append(rows, []string{
			p.Date.Format("2006-01-02"),
			fmt.Sprintf("%d", p.Total),
			fmt.Sprintf("%d", p.Correct),
			percent(p.Accuracy),
		})
	}
	b.WriteString(table([]string{"Day", "Predictions", "Correct", "Accuracy"}, rows))

	if report.Retraining != nil {
		b.WriteString("\n\n")
		b.WriteString(RenderRetraining(report.Retraining))
	}
	return b.String()
}

// RenderRetraining renders the retraining recommendation.
func RenderRetraining(advice *model.RetrainingAdvice) string {
	var b strings.Builder
	if advice.ShouldRetrain {
		b.WriteString(FormatWarning("Retraining recommended"))
	} else {
		b.WriteString(FormatSuccess("No retraining needed"))
	}
	for _, reason := range advice.Reasons {
		b.WriteString("\n  - ")
		b.WriteString(reason)
	}
	if advice.LastRetrainedAt != nil {
		b.WriteString("\n")
		b.WriteString(SubtleStyle.Render("Last retrained " + advice.LastRetrainedAt.Format("2006-01-02 15:04 MST")))
	}
	return b.String()
}

// RenderStats renders embedding coverage.
func RenderStats(stats *classifier.Stats) string {
	content := fmt.Sprintf(
		"Model: %s (%d dimensions)\nTransactions: %d\nWith embeddings: %d\nStale: %d\nMissing: %d\nIndexed: %d\nCoverage: %.1f%%",
		stats.Model, stats.Dimension, stats.Transactions, stats.WithEmbeddings,
		stats.Stale, stats.Missing, stats.Indexed, stats.CoveragePercent)
	return RenderBox(ChartIcon+" Embedding coverage", content)
}

// RenderAccounts renders a chart of accounts.
func RenderAccounts(accounts []model.Account) string {
	if len(accounts) == 0 {
		return FormatInfo("No accounts. Seed the default chart with: coa accounts seed")
	}
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		name := a.Name
		if a.IsGroup {
			name = BoldStyle.Render(name)
		}
		if !a.IsActive {
			name = SubtleStyle.Render(name + " (inactive)")
		}
		rows = append(rows, []string{fmt.Sprintf("%d", a.ID), a.Code, name, string(a.Type)})
	}
	return table([]string{"ID", "Code", "Name", "Type"}, rows)
}
