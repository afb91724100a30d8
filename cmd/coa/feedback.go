package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/coa-classifier/internal/cli"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/feedback"
	"github.com/Veraticus/coa-classifier/internal/model"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback TRANSACTION_ID",
		Short: "Confirm or correct a transaction's account",
		Long: `Record a reviewer's verdict on a transaction.

The predicted account and confidence default to the suggestion stored on
the transaction. Passing the suggested code as --account confirms it; any
other postable code is a correction.

Examples:
  coa feedback -c acme 5f0c... --account 5320
  coa feedback -c acme 5f0c... --account 5320 --predicted 5910 --confidence 0.42`,
		Args: cobra.ExactArgs(1),
		RunE: runFeedback,
	}

	cmd.Flags().String("account", "", "correct account code (required)")
	cmd.Flags().String("predicted", "", "predicted account code (default from the stored suggestion)")
	cmd.Flags().Float64("confidence", -1, "predicted confidence (default from the stored suggestion)")
	cmd.Flags().String("reason", "", "why the account was chosen")
	cmd.Flags().String("user", os.Getenv("USER"), "reviewer id")
	cmd.Flags().String("id", "", "idempotency key for retries")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	company, err := companyID()
	if err != nil {
		return err
	}
	accountCode, _ := cmd.Flags().GetString("account")
	predictedCode, _ := cmd.Flags().GetString("predicted")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	reason, _ := cmd.Flags().GetString("reason")
	user, _ := cmd.Flags().GetString("user")
	id, _ := cmd.Flags().GetString("id")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	chart, err := a.chart(ctx, company)
	if err != nil {
		return err
	}
	txn, err := a.svc.Transaction(ctx, company, args[0])
	if err != nil {
		return err
	}

	correct, ok := chart.ByCode(accountCode)
	if !ok {
		return common.NotFound("account %s", accountCode)
	}

	req := feedback.Request{
		ID:               id,
		CompanyID:        company,
		TransactionID:    txn.ID,
		CorrectAccountID: correct.ID,
		Confidence:       confidence,
		Reason:           reason,
		UserID:           user,
	}
	if p := txn.Prediction; p != nil {
		req.PredictedAccountID = p.AccountID
		if confidence < 0 {
			req.Confidence = p.Confidence
		}
	}
	if predictedCode != "" {
		predicted, ok := chart.ByCode(predictedCode)
		if !ok {
			return common.NotFound("account %s", predictedCode)
		}
		req.PredictedAccountID = predicted.ID
	}
	if req.PredictedAccountID == 0 {
		return common.InvalidInput("transaction has no suggestion; pass --predicted and --confidence")
	}

	outcome, err := a.svc.Feedback(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, describeOutcome(outcome))
	return nil
}

func describeOutcome(outcome *model.FeedbackOutcome) string {
	entry := outcome.Entry
	msg := fmt.Sprintf("Recorded %s %s", entry.Kind, entry.ID)
	if outcome.Duplicate {
		msg = fmt.Sprintf("Feedback %s was already recorded", entry.ID)
	}
	if outcome.Degraded {
		return cli.FormatWarning(msg + " (embedding model unavailable; similarity index not updated)")
	}
	return cli.FormatSuccess(msg)
}

func lowConfidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "low-confidence",
		Aliases: []string{"queue"},
		Short:   "List suggestions that need review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			threshold := thresholdFlag(cmd)
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			company, err := companyID()
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.svc.LowConfidence(ctx, company, threshold, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, items)
			}
			fmt.Fprintln(out, cli.RenderReviewQueue(items, a.svc.ReviewThreshold(threshold)))
			return nil
		},
	}

	reviewFlags(cmd)
	cmd.Flags().Bool("json", false, "print JSON instead of a table")

	return cmd
}

// thresholdFlag returns nil unless --threshold was given.
func thresholdFlag(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("threshold") {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64("threshold")
	return &v
}

func reviewFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("threshold", 0, "confidence below which suggestions are listed (default from learning.low_confidence_threshold)")
	cmd.Flags().IntP("limit", "n", 50, "maximum transactions")
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactively confirm or correct low-confidence suggestions",
		Long: `Walk the review queue one transaction at a time.

Press enter to accept the suggestion, type an account code to correct it,
s to skip or q to stop. Every answer is recorded as feedback immediately.`,
		RunE: runReview,
	}

	reviewFlags(cmd)
	cmd.Flags().String("user", os.Getenv("USER"), "reviewer id")

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	threshold := thresholdFlag(cmd)
	limit, _ := cmd.Flags().GetInt("limit")
	user, _ := cmd.Flags().GetString("user")

	company, err := companyID()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.warm(ctx); err != nil {
		return err
	}

	chart, err := a.chart(ctx, company)
	if err != nil {
		return err
	}
	items, err := a.svc.LowConfidence(ctx, company, threshold, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(out, cli.FormatSuccess("Nothing needs review"))
		return nil
	}

	reviewer := cli.NewReviewer(cmd.InOrStdin(), out, chart)
	stats, err := reviewer.Review(ctx, items, func(ctx context.Context, d cli.Decision) error {
		p := d.Item.Transaction.Prediction
		if p == nil {
			return common.InvalidInput("transaction %s has no suggestion", d.Item.Transaction.ID)
		}
		_, err := a.svc.Feedback(ctx, feedback.Request{
			CompanyID:          company,
			TransactionID:      d.Item.Transaction.ID,
			PredictedAccountID: p.AccountID,
			CorrectAccountID:   d.Account.ID,
			Confidence:         p.Confidence,
			UserID:             user,
		})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", cli.FormatInfo(fmt.Sprintf(
		"%d confirmed, %d corrected, %d skipped, %d failed",
		stats.Confirmed, stats.Corrected, stats.Skipped, stats.Failed)))
	return nil
}
