// Package main contains the coa CLI commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/coa-classifier/internal/common"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "coa",
		Short: "Chart-of-accounts transaction classifier",
		Long: `coa suggests chart-of-accounts entries for bank transactions.

It combines similarity search over reviewed history with keyword rules and
account-type fallbacks, and learns from every confirmation or correction.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

// envKeys are the settings that may be overridden with COA_* variables.
var envKeys = []string{
	"database.path",
	"embedding.provider",
	"embedding.model",
	"embedding.base_url",
	"embedding.api_key",
	"embedding.cache_dir",
	"retrieval.index_path",
	"server.host",
	"server.port",
	"logging.level",
	"logging.format",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/coa/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringP("company", "c", "", "company id (or COA_COMPANY)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("company", rootCmd.PersistentFlags().Lookup("company"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(similarCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(lowConfidenceCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(retrainingCmd())
	rootCmd.AddCommand(embeddingsCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(importOFXCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, explain(err))
		os.Exit(1)
	}
}

// explain adds a hint to errors the user can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, common.ErrModelUnavailable):
		return common.NewUserError("the embedding model could not be reached; check the embedding settings", err)
	case errors.Is(err, common.ErrDatabaseCorrupted):
		return common.NewUserError("the database file is damaged; restore it from a backup", err)
	case errors.Is(err, common.ErrMissingConfig), errors.Is(err, common.ErrInvalidConfig):
		return common.NewUserError("fix the configuration file or COA_* environment", err)
	}
	return err
}

func initConfig(_ *cobra.Command, _ []string) error {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		viper.AddConfigPath(fmt.Sprintf("%s/.config/coa", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("COA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return setupLogging(viper.GetString("logging.level"), viper.GetString("logging.format"))
}

func setupLogging(level, format string) error {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}

	switch format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}

	common.SetupLogger(slogLevel, format)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coa %s\n", version)
		},
	}
}
