package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/coa-classifier/internal/cli"
)

func embeddingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Manage transaction embeddings",
	}
	cmd.AddCommand(embeddingsGenerateCmd())
	cmd.AddCommand(embeddingsStatsCmd())
	return cmd
}

func embeddingsGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Embed transactions that have no current embedding",
		Long: `Generate embeddings in batches for transactions that are missing one or
whose text changed since they were embedded.

Work is saved as each chunk finishes, so an interrupted run can simply be
started again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			limit, _ := cmd.Flags().GetInt("limit")
			company, err := companyID()
			if err != nil {
				return err
			}

			interrupts := cli.NewInterruptHandler(out, "coa embeddings generate --company "+company)
			ctx := interrupts.HandleInterrupts(cmd.Context())

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.svc.Stats(ctx, company)
			if err != nil {
				return err
			}
			pending := min(stats.Missing+stats.Stale, limit)
			if pending == 0 {
				fmt.Fprintln(out, cli.FormatSuccess("All transactions are embedded"))
				return nil
			}

			progress := cli.NewProgress(os.Stderr, pending, "Embedding")
			summary, err := a.svc.GenerateEmbeddings(ctx, company, limit, progress.Set)
			if err != nil {
				if summary != nil && (interrupts.WasInterrupted() || errors.Is(err, context.Canceled)) {
					fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Embedded %d before stopping", summary.Embedded)))
					return nil
				}
				return err
			}
			progress.Finish()

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf(
				"Embedded %d transactions in %s (%d skipped)",
				summary.Embedded, summary.ProcessingTime.Round(time.Millisecond), summary.Skipped)))
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 1000, "maximum transactions to embed")

	return cmd
}

func embeddingsStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show embedding coverage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
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
			if err := a.warm(ctx); err != nil {
				return err
			}

			stats, err := a.svc.Stats(ctx, company)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, stats)
			}
			fmt.Fprintln(out, cli.RenderStats(stats))
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "print JSON")

	return cmd
}
