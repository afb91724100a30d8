package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/coa-classifier/internal/cli"
	"github.com/Veraticus/coa-classifier/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import bank transactions from OFX or QFX files as unclassified
transactions. Transactions repeated across the given files are imported once.

Examples:
  coa import-ofx -c acme ~/Downloads/chase_jan_2024.qfx
  coa import-ofx -c acme ~/Downloads/*.qfx --classify`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	cmd.Flags().Bool("classify", false, "Suggest an account for each imported transaction")

	return cmd
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}

// parseFiles parses every file, skipping unreadable ones and transactions
// already seen in an earlier file.
func parseFiles(cmd *cobra.Command, files []string) []ofx.Entry {
	parser := ofx.NewParser()
	seen := make(map[string]bool)
	var entries []ofx.Entry

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			continue
		}
		parsed, err := parser.ParseFile(cmd.Context(), f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}

		added := 0
		for _, e := range parsed {
			key := e.AccountID + "/" + e.FITID
			if e.FITID != "" && seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, e)
			added++
		}
		slog.Info("Processed file",
			"file", filepath.Base(path),
			"transactions_found", len(parsed),
			"added", added,
			"duplicates", len(parsed)-added)
	}
	return entries
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	classify, _ := cmd.Flags().GetBool("classify")

	company, err := companyID()
	if err != nil {
		return err
	}
	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	entries := parseFiles(cmd, files)
	if len(entries) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No transactions found in any file"))
		return nil
	}
	if dryRun {
		printEntries(out, entries)
		return nil
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if classify {
		if err := a.warm(ctx); err != nil {
			return err
		}
	}

	progress := cli.NewProgress(os.Stderr, len(entries), "Importing")
	imported, suggested := 0, 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			break
		}
		txn, err := a.svc.Ingest(ctx, company, e.Candidate)
		if err != nil {
			return fmt.Errorf("importing %s: %w", e.FITID, err)
		}
		imported++
		if classify {
			if _, err := a.svc.ClassifyTransaction(ctx, company, txn.ID); err != nil {
				slog.Warn("Failed to classify imported transaction", "transaction_id", txn.ID, "error", err)
			} else {
				suggested++
			}
		}
		progress.Set(imported)
	}
	progress.Finish()

	msg := fmt.Sprintf("Imported %d of %d transactions", imported, len(entries))
	if classify {
		msg += fmt.Sprintf(", %d classified", suggested)
	}
	fmt.Fprintln(out, cli.FormatSuccess(msg))
	return nil
}

func printEntries(w io.Writer, entries []ofx.Entry) {
	fmt.Fprintln(w, cli.FormatTitle(fmt.Sprintf("%d transactions (dry run)", len(entries))))
	for _, e := range entries {
		c := e.Candidate
		fmt.Fprintf(w, "%s  %12s  %-40s  %s\n",
			c.Date.Format(dateLayout), c.Amount.StringFixed(2), c.Description, c.Vendor)
	}
}
