package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/coa-classifier/internal/cli"
)

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show accuracy trend and feedback summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			days, _ := cmd.Flags().GetInt("days")
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

			report, err := a.svc.Metrics(ctx, company, days)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, report)
			}
			fmt.Fprintln(out, cli.RenderReport(report))
			return nil
		},
	}

	cmd.Flags().Int("days", 30, "trend window in days")
	cmd.Flags().Bool("json", false, "print JSON")

	return cmd
}

func retrainingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retraining",
		Short: "Check whether the model should be retrained",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			company, err := companyID()
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			advice, err := a.svc.Retraining(ctx, company)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRetraining(advice))
			return nil
		},
	}

	mark := &cobra.Command{
		Use:   "mark",
		Short: "Record that the model was retrained",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			note, _ := cmd.Flags().GetString("note")
			company, err := companyID()
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			at, err := a.svc.MarkRetrained(ctx, company, note)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Retrained at "+at.Format("2006-01-02 15:04 MST")))
			return nil
		},
	}
	mark.Flags().String("note", "", "free-form note stored with the event")
	cmd.AddCommand(mark)

	return cmd
}
