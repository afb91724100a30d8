package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/coa-classifier/internal/cli"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [description]",
		Short: "Store a single unclassified transaction",
		Example: `  coa ingest -c acme "Staples order 4411" --amount -86.12 --date 2024-05-02 --classify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			classify, _ := cmd.Flags().GetBool("classify")

			company, err := companyID()
			if err != nil {
				return err
			}
			candidate, err := candidateFromFlags(cmd, args)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			txn, err := a.svc.Ingest(ctx, company, candidate)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatSuccess("Stored transaction "+txn.ID))
			if !classify {
				return nil
			}

			if err := a.warm(ctx); err != nil {
				return err
			}
			result, err := a.svc.ClassifyTransaction(ctx, company, txn.ID)
			if err != nil {
				return err
			}
			if result.Suggestion != nil {
				fmt.Fprintf(out, "Suggested %s %s (%.2f)\n",
					result.Suggestion.AccountCode, result.Suggestion.AccountName, result.Suggestion.Confidence)
			}
			return nil
		},
	}

	transactionFlags(cmd)
	cmd.Flags().Bool("classify", false, "suggest an account right away")

	return cmd
}
