package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/cli"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
)

const dateLayout = "2006-01-02"

// transactionFlags adds the flags describing an unsaved transaction.
func transactionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("amount", "a", "", "signed amount, negative for money out (required)")
	cmd.Flags().StringP("vendor", "v", "", "vendor or counterparty")
	cmd.Flags().StringP("date", "d", "", "transaction date (YYYY-MM-DD, default today)")
}

// candidateFromFlags builds a transaction candidate from the description
// arguments and the transaction flags.
func candidateFromFlags(cmd *cobra.Command, args []string) (model.TransactionCandidate, error) {
	amountStr, _ := cmd.Flags().GetString("amount")
	vendor, _ := cmd.Flags().GetString("vendor")
	dateStr, _ := cmd.Flags().GetString("date")

	description := strings.TrimSpace(strings.Join(args, " "))
	if description == "" {
		return model.TransactionCandidate{}, common.InvalidInput("description is required")
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		return model.TransactionCandidate{}, err
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return model.TransactionCandidate{}, err
	}
	return model.TransactionCandidate{
		Date:        date,
		Description: description,
		Vendor:      vendor,
		Amount:      amount,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, common.InvalidInput("amount is required")
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, common.InvalidInput("amount %q is not a decimal number", s)
	}
	return amount, nil
}

// parseDate parses YYYY-MM-DD. Empty means the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, common.InvalidInput("date %q must be YYYY-MM-DD", s)
	}
	return date, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [description]",
		Short: "Suggest accounts for a transaction",
		Long: `Rank chart-of-accounts entries for a transaction.

Without --transaction the transaction is classified ad hoc and nothing is
stored. With --transaction the stored transaction is classified and its top
suggestion is recorded for review.

Examples:
  coa classify -c acme "Hotel Indigo two nights" --amount -318.40
  coa classify -c acme --transaction 5f0c...`,
		RunE: runClassify,
	}

	transactionFlags(cmd)
	cmd.Flags().StringP("transaction", "t", "", "classify a stored transaction by id")
	cmd.Flags().Bool("json", false, "print JSON instead of a table")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")
	transactionID, _ := cmd.Flags().GetString("transaction")

	company, err := companyID()
	if err != nil {
		return err
	}

	var req classifier.ClassifyRequest
	if transactionID == "" {
		candidate, err := candidateFromFlags(cmd, args)
		if err != nil {
			return err
		}
		req = classifier.ClassifyRequest{
			CompanyID:   company,
			Description: candidate.Description,
			Vendor:      candidate.Vendor,
			Amount:      candidate.Amount,
			Date:        candidate.Date,
		}
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.warm(ctx); err != nil {
		return err
	}

	if transactionID != "" {
		result, err := a.svc.ClassifyTransaction(ctx, company, transactionID)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(out, result)
		}
		fmt.Fprintln(out, cli.RenderClassification(&classifier.ClassifyResponse{
			Suggestions: result.Candidates,
			Similar:     result.Similar,
			Degraded:    result.Degraded,
		}))
		if !result.Materialized {
			fmt.Fprintln(out, cli.FormatInfo("Transaction was already reviewed; its account was left unchanged"))
		}
		return nil
	}

	resp, err := a.svc.Classify(ctx, req)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, resp)
	}
	fmt.Fprintln(out, cli.RenderClassification(resp))
	return nil
}

func similarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar [description]",
		Short: "Find similar reviewed transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			asJSON, _ := cmd.Flags().GetBool("json")
			topK, _ := cmd.Flags().GetInt("top-k")

			company, err := companyID()
			if err != nil {
				return err
			}
			if strings.TrimSpace(strings.Join(args, " ")) == "" {
				return common.InvalidInput("description is required")
			}
			amount := decimal.Zero
			if s, _ := cmd.Flags().GetString("amount"); s != "" {
				if amount, err = parseAmount(s); err != nil {
					return err
				}
			}
			vendor, _ := cmd.Flags().GetString("vendor")

			req := classifier.SimilarRequest{
				CompanyID:   company,
				Description: strings.Join(args, " "),
				Vendor:      vendor,
				Amount:      amount,
				TopK:        topK,
			}
			if cmd.Flags().Changed("min-similarity") {
				v, _ := cmd.Flags().GetFloat64("min-similarity")
				req.MinSimilarity = &v
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.warm(ctx); err != nil {
				return err
			}

			matches, err := a.svc.Similar(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, matches)
			}
			fmt.Fprintln(out, cli.RenderSimilar(matches))
			return nil
		},
	}

	cmd.Flags().StringP("amount", "a", "", "signed amount")
	cmd.Flags().StringP("vendor", "v", "", "vendor or counterparty")
	cmd.Flags().IntP("top-k", "k", 0, "maximum matches (default from retrieval.top_k)")
	cmd.Flags().Float64("min-similarity", 0, "minimum similarity (default from retrieval.min_similarity)")
	cmd.Flags().Bool("json", false, "print JSON instead of a table")

	return cmd
}
