package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/coa-classifier/internal/model"
)

// Decision is the reviewer's verdict on one review item.
type Decision struct {
	Item    model.ReviewItem
	Account *model.Account
}

// Confirmed reports whether the reviewer kept the suggested account.
func (d Decision) Confirmed() bool {
	p := d.Item.Transaction.Prediction
	return p != nil && p.AccountID == d.Account.ID
}

// ReviewStats counts what happened during a review session.
type ReviewStats struct {
	Confirmed int
	Corrected int
	Skipped   int
	Failed    int
}

// Reviewer walks a review queue interactively.
type Reviewer struct {
	reader *NonBlockingReader
	writer io.Writer
	chart  *model.ChartOfAccounts
}

// NewReviewer creates a reviewer that resolves typed codes against chart.
func NewReviewer(reader io.Reader, writer io.Writer, chart *model.ChartOfAccounts) *Reviewer {
	return &Reviewer{
		reader: NewNonBlockingReader(reader),
		writer: writer,
		chart:  chart,
	}
}

// Review prompts for every item. An empty answer accepts the suggestion, an
// account code corrects it, "s" skips and "q" stops. record is called for
// each accepted or corrected item; its failures are reported and counted
// without ending the session.
func (r *Reviewer) Review(ctx context.Context, items []model.ReviewItem, record func(context.Context, Decision) error) (ReviewStats, error) {
	var stats ReviewStats

	for i, item := range items {
		r.printf("\n%s\n", RenderBox(
			fmt.Sprintf("%d of %d", i+1, len(items)),
			describe(item),
		))

		decision, done, err := r.ask(ctx, item)
		if err != nil {
			if errors.Is(err, ErrInputCancelled) || errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, err
		}
		if done {
			return stats, nil
		}
		if decision == nil {
			stats.Skipped++
			continue
		}

		if err := record(ctx, *decision); err != nil {
			stats.Failed++
			r.printf("%s\n", FormatError(err.Error()))
			continue
		}
		if decision.Confirmed() {
			stats.Confirmed++
			r.printf("%s\n", FormatSuccess("Confirmed "+decision.Account.Code))
		} else {
			stats.Corrected++
			r.printf("%s\n", FormatSuccess("Corrected to "+decision.Account.Code+" "+decision.Account.Name))
		}
	}
	return stats, nil
}

// ask loops until the answer is usable. It returns a nil decision for skip
// and done for quit.
func (r *Reviewer) ask(ctx context.Context, item model.ReviewItem) (*Decision, bool, error) {
	for {
		r.printf("%s", FormatPrompt("[enter] accept, account code, s skip, q quit"))
		answer, err := r.reader.ReadLine(ctx)
		if err != nil {
			return nil, false, err
		}

		switch strings.ToLower(answer) {
		case "q", "quit":
			return nil, true, nil
		case "s", "skip":
			return nil, false, nil
		case "":
			p := item.Transaction.Prediction
			if p == nil {
				r.printf("%s\n", FormatWarning("No suggestion to accept; type an account code"))
				continue
			}
			account, ok := r.chart.ByID(p.AccountID)
			if !ok {
				r.printf("%s\n", FormatWarning("Suggested account is no longer in the chart"))
				continue
			}
			return &Decision{Item: item, Account: account}, false, nil
		}

		account, ok := r.chart.ByCode(answer)
		if !ok || !account.Postable() {
			r.printf("%s\n", FormatWarning(fmt.Sprintf("%q is not a postable account code", answer)))
			continue
		}
		return &Decision{Item: item, Account: account}, false, nil
	}
}

func describe(item model.ReviewItem) string {
	txn := item.Transaction
	lines := []string{
		BoldStyle.Render(txn.Description),
		fmt.Sprintf("%s  %s", txn.Date.Format("2006-01-02"), txn.Amount.StringFixed(2)),
	}
	if txn.Counterparty != "" {
		lines = append(lines, SubtleStyle.Render(txn.Counterparty))
	}
	if p := txn.Prediction; p != nil {
		lines = append(lines, fmt.Sprintf("Suggested: %s %s (%s)",
			item.AccountCode, item.AccountName, confidence(p.Confidence)))
		if p.Reason != "" {
			lines = append(lines, SubtleStyle.Render(p.Reason))
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Reviewer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.writer, format, args...)
}
