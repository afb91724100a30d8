package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/coa-classifier/internal/cli"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/model"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsSeedCmd())
	cmd.AddCommand(accountsAddCmd())
	return cmd
}

func accountsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
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

			accounts, err := a.svc.Accounts(ctx, company)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, accounts)
			}
			fmt.Fprintln(out, cli.RenderAccounts(accounts))
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print JSON")
	return cmd
}

func accountsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the default small-business chart",
		Long: `Create the default chart of accounts for the company. Accounts that
already exist are left alone, so seeding twice is harmless.`,
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

			created, err := a.svc.SeedDefaultChart(ctx, company)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %d accounts", created)))
			return nil
		},
	}
}

func accountsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add CODE NAME",
		Short: "Add an account",
		Example: `  coa accounts add -c acme 5340 "Cloud Hosting" --type expense --parent 5300`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typeName, _ := cmd.Flags().GetString("type")
			parent, _ := cmd.Flags().GetString("parent")
			description, _ := cmd.Flags().GetString("description")
			group, _ := cmd.Flags().GetBool("group")

			company, err := companyID()
			if err != nil {
				return err
			}
			accountType, err := model.ParseAccountType(typeName)
			if err != nil {
				return common.InvalidInput("%v", err)
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			account := &model.Account{
				CompanyID:   company,
				Code:        args[0],
				Name:        args[1],
				Description: description,
				Type:        accountType,
				IsGroup:     group,
				IsActive:    true,
			}
			if err := a.svc.AddAccount(ctx, account, parent); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %s %s", account.Code, account.Name)))
			return nil
		},
	}

	cmd.Flags().StringP("type", "t", "", "account type: asset, liability, equity, revenue or expense (required)")
	cmd.Flags().String("parent", "", "parent group account code")
	cmd.Flags().String("description", "", "account description")
	cmd.Flags().Bool("group", false, "create a group account that cannot be posted to")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
